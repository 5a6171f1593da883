package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evertrust/banking/internal/models"
	"github.com/shopspring/decimal"
)

// Store is the account-store contract the engine consumes: row reads
// under FOR UPDATE locks, optimistic multi-row writes, and append-only
// inserts, all scoped to one *sql.Tx per operation.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Store{db: db, lockTimeout: lockTimeout}
}

// Begin opens the operation's atomic unit. A session lock timeout
// bounds every FOR UPDATE wait inside it; exceeding it surfaces as a
// lock_not_available error which the engine maps to ErrConflict.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		tx.Rollback()
		return nil, err
	}
	return tx, nil
}

// lockAccount reads one account FOR UPDATE. Ownership is checked on the
// same locked read used for the balance, so the ownership and
// sufficiency decisions see a single snapshot.
func (s *Store) lockAccount(tx *sql.Tx, accountID, userID int64) (*models.Account, error) {
	var acc models.Account
	var balance string
	err := tx.QueryRow(`
		SELECT id, user_id, type, number, balance, currency, version, updated_at
		FROM accounts
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`, accountID, userID).
		Scan(&acc.ID, &acc.UserID, &acc.Type, &acc.Number, &balance, &acc.Currency, &acc.Version, &acc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, mapConflict(err)
	}
	acc.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("account %d: bad stored balance: %w", acc.ID, err)
	}
	return &acc, nil
}

// lockAccountPair locks two accounts in ascending id order regardless
// of transfer direction, then returns them in (fromID, toID) order.
// The fixed total order prevents deadlock between opposite transfers
// over the same pair.
func (s *Store) lockAccountPair(tx *sql.Tx, fromID, toID, userID int64) (from, to *models.Account, err error) {
	firstID, secondID := fromID, toID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	first, err := s.lockAccount(tx, firstID, userID)
	if err != nil {
		return nil, nil, err
	}
	second, err := s.lockAccount(tx, secondID, userID)
	if err != nil {
		return nil, nil, err
	}

	if first.ID == fromID {
		return first, second, nil
	}
	return second, first, nil
}

// updateBalance writes the new balance guarded by the version read
// under the row lock. Zero rows affected means the write lost a race.
func (s *Store) updateBalance(tx *sql.Tx, acc *models.Account, newBalance decimal.Decimal) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance.StringFixed(2), time.Now(), acc.ID, acc.Version)
	if err != nil {
		return mapConflict(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("account %d: %w", acc.ID, ErrConflict)
	}
	return nil
}

func (s *Store) insertTransaction(tx *sql.Tx, t *models.Transaction) error {
	t.CreatedAt = time.Now()
	return tx.QueryRow(`
		INSERT INTO transactions (account_id, type, amount, description, counterparty, status, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		t.AccountID, t.Kind, t.Amount.StringFixed(2), t.Description, t.Counterparty, t.Status, t.Reference, t.CreatedAt).
		Scan(&t.ID)
}

func (s *Store) insertExternalTransfer(tx *sql.Tx, et *models.ExternalTransfer) error {
	et.CreatedAt = time.Now()
	return tx.QueryRow(`
		INSERT INTO external_transfers (user_id, from_account_id, transaction_id, bank_name, bank_code, beneficiary_name, beneficiary_account, amount, fee, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		et.UserID, et.FromAccountID, et.TransactionID, et.BankName, et.BankCode, et.BeneficiaryName,
		et.BeneficiaryAccount, et.Amount.StringFixed(2), et.Fee.StringFixed(2), et.Status, et.CreatedAt).
		Scan(&et.ID)
}

func (s *Store) insertBill(tx *sql.Tx, b *models.Bill) error {
	b.CreatedAt = time.Now()
	return tx.QueryRow(`
		INSERT INTO bills (user_id, biller_id, account_id, amount, status, due_date, paid_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		b.UserID, b.BillerID, b.AccountID, b.Amount.StringFixed(2), b.Status, b.DueDate, b.PaidDate, b.CreatedAt).
		Scan(&b.ID)
}

func (s *Store) getBiller(tx *sql.Tx, billerID, userID int64) (*models.Biller, error) {
	var biller models.Biller
	err := tx.QueryRow(`
		SELECT id, user_id, name, category, account_number
		FROM billers
		WHERE id = $1 AND user_id = $2`, billerID, userID).
		Scan(&biller.ID, &biller.UserID, &biller.Name, &biller.Category, &biller.AccountNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBillerNotFound
		}
		return nil, err
	}
	return &biller, nil
}

// lockExternalTransfer pins the transfer row so concurrent completion
// attempts serialize; the caller decides idempotently from its status.
func (s *Store) lockExternalTransfer(tx *sql.Tx, transferID int64) (*models.ExternalTransfer, error) {
	var et models.ExternalTransfer
	var amount, fee string
	err := tx.QueryRow(`
		SELECT id, user_id, from_account_id, transaction_id, bank_name, bank_code, beneficiary_name, beneficiary_account, amount, fee, status, created_at
		FROM external_transfers
		WHERE id = $1
		FOR UPDATE`, transferID).
		Scan(&et.ID, &et.UserID, &et.FromAccountID, &et.TransactionID, &et.BankName, &et.BankCode,
			&et.BeneficiaryName, &et.BeneficiaryAccount, &amount, &fee, &et.Status, &et.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, mapConflict(err)
	}
	if et.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transfer %d: bad stored amount: %w", et.ID, err)
	}
	if et.Fee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("transfer %d: bad stored fee: %w", et.ID, err)
	}
	return &et, nil
}

func (s *Store) setExternalTransferStatus(tx *sql.Tx, transferID int64, status models.TransactionStatus) error {
	_, err := tx.Exec(`UPDATE external_transfers SET status = $1 WHERE id = $2`, status, transferID)
	return err
}

func (s *Store) setTransactionStatus(tx *sql.Tx, transactionID int64, status models.TransactionStatus) error {
	_, err := tx.Exec(`UPDATE transactions SET status = $1 WHERE id = $2`, status, transactionID)
	return err
}

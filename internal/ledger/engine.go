package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/evertrust/banking/internal/alerts"
	"github.com/evertrust/banking/internal/audit"
	"github.com/evertrust/banking/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExternalTransferFee is deducted on top of the transfer amount.
var ExternalTransferFee = decimal.New(2500, -2)

// AuditSink receives operation records after the atomic unit commits.
// Implementations are best-effort; they must never return control-flow
// errors to the engine.
type AuditSink interface {
	Record(ctx context.Context, userID int64, entity string, entityID int64, payload audit.Payload)
}

// NotificationSink enqueues user-facing messages. Fire-and-forget.
type NotificationSink interface {
	Dispatch(ctx context.Context, userID int64, kind string, payload map[string]string)
}

// AlertSink persists alerts raised by the evaluator after commit.
type AlertSink interface {
	Insert(ctx context.Context, a *models.Alert) error
}

// SettlementSubmitter hands accepted external transfers to the
// interbank network once their debit has committed.
type SettlementSubmitter interface {
	Submit(ctx context.Context, et *models.ExternalTransfer, fromAccountNumber, currency string) error
}

// Engine executes the five money-movement operations as atomic units.
// It owns all balance arithmetic and ownership/sufficiency checks;
// alert evaluation and audit/notification dispatch run strictly after
// commit and can never roll the unit back. Any sink may be nil.
type Engine struct {
	store      *Store
	prefs      *alerts.PrefsStore
	alertSink  AlertSink
	audit      AuditSink
	notify     NotificationSink
	settlement SettlementSubmitter
}

func NewEngine(store *Store, prefs *alerts.PrefsStore, alertSink AlertSink, auditSink AuditSink, notifySink NotificationSink, settlement SettlementSubmitter) *Engine {
	return &Engine{
		store:      store,
		prefs:      prefs,
		alertSink:  alertSink,
		audit:      auditSink,
		notify:     notifySink,
		settlement: settlement,
	}
}

type DepositRequest struct {
	AccountID    int64
	Amount       decimal.Decimal
	Description  string
	Counterparty string
}

type WithdrawRequest struct {
	AccountID    int64
	Amount       decimal.Decimal
	Description  string
	Counterparty string
}

type InternalTransferRequest struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	Description   string
}

type ExternalTransferRequest struct {
	FromAccountID      int64
	BankName           string
	BankCode           string
	BeneficiaryName    string
	BeneficiaryAccount string
	Amount             decimal.Decimal
}

type BillPaymentRequest struct {
	BillerID  int64
	AccountID int64
	Amount    decimal.Decimal
	DueDate   time.Time
}

// Result reports what one committed operation produced: the created
// row(s), the source account's new balance, and the alerts raised.
type Result struct {
	Transaction *models.Transaction      `json:"transaction"`
	Counterpart *models.Transaction      `json:"counterpart,omitempty"`
	Transfer    *models.ExternalTransfer `json:"transfer,omitempty"`
	Bill        *models.Bill             `json:"bill,omitempty"`
	Balance     decimal.Decimal          `json:"balance"`
	Alerts      []models.Alert           `json:"-"`
}

// Deposit credits an owned account. No upper bound applies.
func (e *Engine) Deposit(ctx context.Context, userID int64, req DepositRequest) (*Result, error) {
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acc, err := e.store.lockAccount(tx, req.AccountID, userID)
	if err != nil {
		return nil, err
	}

	newBalance := acc.Balance.Add(req.Amount)
	t := &models.Transaction{
		AccountID:    acc.ID,
		Kind:         models.KindDeposit,
		Amount:       req.Amount,
		Description:  orDefault(req.Description, "Deposit"),
		Counterparty: orDefault(req.Counterparty, "Self"),
		Status:       models.StatusCompleted,
		Reference:    newReference(),
	}
	if err := e.store.insertTransaction(tx, t); err != nil {
		return nil, mapConflict(err)
	}
	if err := e.store.updateBalance(tx, acc, newBalance); err != nil {
		return nil, err
	}

	prefs, err := e.prefs.GetOrCreateTx(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}

	acc.Balance = newBalance
	raised := alerts.Evaluate(alerts.Input{UserID: userID, Account: acc, Transaction: t, Prefs: prefs})
	e.afterCommit(ctx, userID, "transaction", t.ID, audit.DepositCreated{
		AccountID:     acc.ID,
		AccountNumber: acc.Number,
		Amount:        req.Amount.StringFixed(2),
		Description:   req.Description,
	}, raised, prefs, receiptPayload(t, acc))

	return &Result{Transaction: t, Balance: newBalance, Alerts: raised}, nil
}

// Withdraw debits an owned account, refusing any mutation that would
// take the balance below zero.
func (e *Engine) Withdraw(ctx context.Context, userID int64, req WithdrawRequest) (*Result, error) {
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acc, err := e.store.lockAccount(tx, req.AccountID, userID)
	if err != nil {
		return nil, err
	}
	if acc.Balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	newBalance := acc.Balance.Sub(req.Amount)
	t := &models.Transaction{
		AccountID:    acc.ID,
		Kind:         models.KindWithdrawal,
		Amount:       req.Amount,
		Description:  orDefault(req.Description, "Withdrawal"),
		Counterparty: orDefault(req.Counterparty, "Self"),
		Status:       models.StatusCompleted,
		Reference:    newReference(),
	}
	if err := e.store.insertTransaction(tx, t); err != nil {
		return nil, mapConflict(err)
	}
	if err := e.store.updateBalance(tx, acc, newBalance); err != nil {
		return nil, err
	}

	prefs, err := e.prefs.GetOrCreateTx(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}

	acc.Balance = newBalance
	raised := alerts.Evaluate(alerts.Input{UserID: userID, Account: acc, Transaction: t, Prefs: prefs})
	e.afterCommit(ctx, userID, "transaction", t.ID, audit.WithdrawalCreated{
		AccountID:     acc.ID,
		AccountNumber: acc.Number,
		Amount:        req.Amount.StringFixed(2),
		Description:   req.Description,
	}, raised, prefs, receiptPayload(t, acc))

	return &Result{Transaction: t, Balance: newBalance, Alerts: raised}, nil
}

// TransferInternal moves money between two accounts of the same user.
// Exactly two transaction rows are written and the two balance deltas
// commit as one unit, so the pair's total balance is conserved.
func (e *Engine) TransferInternal(ctx context.Context, userID int64, req InternalTransferRequest) (*Result, error) {
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, ErrSameAccount
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	from, to, err := e.store.lockAccountPair(tx, req.FromAccountID, req.ToAccountID, userID)
	if err != nil {
		return nil, err
	}
	if from.Balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	reference := newReference()
	debit := &models.Transaction{
		AccountID:    from.ID,
		Kind:         models.KindTransfer,
		Amount:       req.Amount,
		Description:  orDefault(req.Description, fmt.Sprintf("Transfer to account %s", to.Number)),
		Counterparty: fmt.Sprintf("Account %s", to.Number),
		Status:       models.StatusCompleted,
		Reference:    reference,
	}
	credit := &models.Transaction{
		AccountID:    to.ID,
		Kind:         models.KindTransfer,
		Amount:       req.Amount,
		Description:  orDefault(req.Description, fmt.Sprintf("Transfer from account %s", from.Number)),
		Counterparty: fmt.Sprintf("Account %s", from.Number),
		Status:       models.StatusCompleted,
		Reference:    reference,
	}
	if err := e.store.insertTransaction(tx, debit); err != nil {
		return nil, mapConflict(err)
	}
	if err := e.store.insertTransaction(tx, credit); err != nil {
		return nil, mapConflict(err)
	}

	fromBalance := from.Balance.Sub(req.Amount)
	toBalance := to.Balance.Add(req.Amount)
	if err := e.store.updateBalance(tx, from, fromBalance); err != nil {
		return nil, err
	}
	if err := e.store.updateBalance(tx, to, toBalance); err != nil {
		return nil, err
	}

	prefs, err := e.prefs.GetOrCreateTx(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}

	from.Balance = fromBalance
	raised := alerts.Evaluate(alerts.Input{UserID: userID, Account: from, Transaction: debit, Prefs: prefs})
	e.afterCommit(ctx, userID, "transaction", debit.ID, audit.InternalTransferCreated{
		FromAccountID:     from.ID,
		FromAccountNumber: from.Number,
		ToAccountID:       to.ID,
		ToAccountNumber:   to.Number,
		Amount:            req.Amount.StringFixed(2),
		Description:       req.Description,
	}, raised, prefs, receiptPayload(debit, from))

	return &Result{Transaction: debit, Counterpart: credit, Balance: fromBalance, Alerts: raised}, nil
}

// TransferExternal debits amount plus the fixed fee and records the
// transfer in status Processing. Completion is a separate, genuinely
// asynchronous step (CompleteExternalTransfer).
func (e *Engine) TransferExternal(ctx context.Context, userID int64, req ExternalTransferRequest) (*Result, error) {
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}
	total := req.Amount.Add(ExternalTransferFee)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acc, err := e.store.lockAccount(tx, req.FromAccountID, userID)
	if err != nil {
		return nil, err
	}
	if acc.Balance.LessThan(total) {
		return nil, ErrInsufficientFunds
	}

	t := &models.Transaction{
		AccountID:    acc.ID,
		Kind:         models.KindExternalTransfer,
		Amount:       total,
		Description:  fmt.Sprintf("External transfer to %s at %s", req.BeneficiaryName, req.BankName),
		Counterparty: req.BeneficiaryName,
		Status:       models.StatusProcessing,
		Reference:    newReference(),
	}
	if err := e.store.insertTransaction(tx, t); err != nil {
		return nil, mapConflict(err)
	}

	et := &models.ExternalTransfer{
		UserID:             userID,
		FromAccountID:      acc.ID,
		TransactionID:      t.ID,
		BankName:           req.BankName,
		BankCode:           req.BankCode,
		BeneficiaryName:    req.BeneficiaryName,
		BeneficiaryAccount: req.BeneficiaryAccount,
		Amount:             req.Amount,
		Fee:                ExternalTransferFee,
		Status:             models.StatusProcessing,
	}
	if err := e.store.insertExternalTransfer(tx, et); err != nil {
		return nil, mapConflict(err)
	}

	newBalance := acc.Balance.Sub(total)
	if err := e.store.updateBalance(tx, acc, newBalance); err != nil {
		return nil, err
	}

	prefs, err := e.prefs.GetOrCreateTx(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}

	acc.Balance = newBalance
	raised := alerts.Evaluate(alerts.Input{UserID: userID, Account: acc, Transaction: t, Prefs: prefs})
	e.afterCommit(ctx, userID, "external_transfer", et.ID, audit.ExternalTransferCreated{
		FromAccountID:           acc.ID,
		FromAccountNumber:       acc.Number,
		BankName:                req.BankName,
		BeneficiaryName:         req.BeneficiaryName,
		BeneficiaryAccountLast4: last4(req.BeneficiaryAccount),
		Amount:                  req.Amount.StringFixed(2),
		Fee:                     ExternalTransferFee.StringFixed(2),
	}, raised, prefs, receiptPayload(t, acc))

	if e.settlement != nil {
		if err := e.settlement.Submit(ctx, et, acc.Number, acc.Currency); err != nil {
			log.Printf("[LEDGER] settlement submission failed for transfer %d, left in Processing: %v", et.ID, err)
		}
	}

	return &Result{Transaction: t, Transfer: et, Balance: newBalance, Alerts: raised}, nil
}

// CompleteExternalTransfer resolves a Processing transfer to Completed
// or Failed. Failure refunds the full debit (amount plus fee) in the
// same atomic unit via a refund deposit row, preserving the
// one-row-per-balance-delta invariant. Calling it on an
// already-terminal transfer is a no-op returning the current state, so
// completion retries are idempotent. Only the transfer's owner may
// resolve it; foreign callers get ErrTransferNotFound.
func (e *Engine) CompleteExternalTransfer(ctx context.Context, userID, transferID int64, outcome models.TransactionStatus) (*models.ExternalTransfer, error) {
	if outcome != models.StatusCompleted && outcome != models.StatusFailed {
		return nil, fmt.Errorf("invalid completion outcome %q", outcome)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	et, err := e.store.lockExternalTransfer(tx, transferID)
	if err != nil {
		return nil, err
	}
	// Ownership is judged against the locked row, same as accounts, so
	// a foreign caller can neither resolve nor probe the transfer.
	if et.UserID != userID {
		return nil, ErrTransferNotFound
	}
	if et.Status == models.StatusCompleted || et.Status == models.StatusFailed {
		return et, nil
	}

	var refunded decimal.Decimal
	if outcome == models.StatusFailed {
		acc, err := e.store.lockAccount(tx, et.FromAccountID, et.UserID)
		if err != nil {
			return nil, err
		}
		refunded = et.Amount.Add(et.Fee)
		refund := &models.Transaction{
			AccountID:    acc.ID,
			Kind:         models.KindDeposit,
			Amount:       refunded,
			Description:  fmt.Sprintf("Refund of failed external transfer to %s", et.BeneficiaryName),
			Counterparty: "EverTrust Bank",
			Status:       models.StatusCompleted,
			Reference:    newReference(),
		}
		if err := e.store.insertTransaction(tx, refund); err != nil {
			return nil, mapConflict(err)
		}
		if err := e.store.updateBalance(tx, acc, acc.Balance.Add(refunded)); err != nil {
			return nil, err
		}
	}

	if err := e.store.setExternalTransferStatus(tx, et.ID, outcome); err != nil {
		return nil, mapConflict(err)
	}
	if err := e.store.setTransactionStatus(tx, et.TransactionID, outcome); err != nil {
		return nil, mapConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}

	et.Status = outcome
	if e.audit != nil {
		payload := audit.ExternalTransferCompleted{TransferID: et.ID, Outcome: string(outcome)}
		if outcome == models.StatusFailed {
			payload.Refunded = refunded.StringFixed(2)
		}
		e.audit.Record(ctx, et.UserID, "external_transfer", et.ID, payload)
	}
	return et, nil
}

// PayBill withdraws the bill amount and records the bill. The bill is
// written already Completed with its paid date inside the same atomic
// unit as the balance mutation; there is no intermediate Pending commit
// for a crash to strand.
func (e *Engine) PayBill(ctx context.Context, userID int64, req BillPaymentRequest) (*Result, error) {
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	biller, err := e.store.getBiller(tx, req.BillerID, userID)
	if err != nil {
		return nil, err
	}
	acc, err := e.store.lockAccount(tx, req.AccountID, userID)
	if err != nil {
		return nil, err
	}
	if acc.Balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	t := &models.Transaction{
		AccountID:    acc.ID,
		Kind:         models.KindWithdrawal,
		Amount:       req.Amount,
		Description:  fmt.Sprintf("Bill payment to %s", biller.Name),
		Counterparty: biller.Name,
		Status:       models.StatusCompleted,
		Reference:    newReference(),
	}
	if err := e.store.insertTransaction(tx, t); err != nil {
		return nil, mapConflict(err)
	}

	now := time.Now()
	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = now.AddDate(0, 0, 30)
	}
	bill := &models.Bill{
		UserID:    userID,
		BillerID:  biller.ID,
		AccountID: acc.ID,
		Amount:    req.Amount,
		Status:    models.StatusCompleted,
		DueDate:   dueDate,
		PaidDate:  &now,
	}
	if err := e.store.insertBill(tx, bill); err != nil {
		return nil, mapConflict(err)
	}

	newBalance := acc.Balance.Sub(req.Amount)
	if err := e.store.updateBalance(tx, acc, newBalance); err != nil {
		return nil, err
	}

	prefs, err := e.prefs.GetOrCreateTx(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapConflict(err)
	}

	acc.Balance = newBalance
	raised := alerts.Evaluate(alerts.Input{UserID: userID, Account: acc, Transaction: t, Prefs: prefs})
	e.afterCommit(ctx, userID, "bill", bill.ID, audit.BillPaid{
		Biller:    biller.Name,
		AccountID: acc.ID,
		Amount:    req.Amount.StringFixed(2),
	}, raised, prefs, receiptPayload(t, acc))

	return &Result{Transaction: t, Bill: bill, Balance: newBalance, Alerts: raised}, nil
}

// afterCommit runs the side-effect phase. Everything here is
// best-effort: a failed alert insert, audit write, or enqueue is
// logged and absorbed, never surfaced to the caller whose mutation has
// already committed.
func (e *Engine) afterCommit(ctx context.Context, userID int64, entity string, entityID int64, payload audit.Payload, raised []models.Alert, prefs models.AlertPrefs, receipt map[string]string) {
	for i := range raised {
		if e.alertSink == nil {
			break
		}
		if err := e.alertSink.Insert(ctx, &raised[i]); err != nil {
			log.Printf("[LEDGER] failed to persist %s alert for user %d: %v", raised[i].Type, userID, err)
		}
	}

	if e.audit != nil {
		e.audit.Record(ctx, userID, entity, entityID, payload)
	}

	if e.notify != nil && prefs.EmailEnabled {
		for _, a := range raised {
			e.notify.Dispatch(ctx, userID, string(a.Type), map[string]string{"message": a.Message})
		}
		if receipt != nil {
			e.notify.Dispatch(ctx, userID, "receipt", receipt)
		}
	}
}

func receiptPayload(t *models.Transaction, acc *models.Account) map[string]string {
	return map[string]string{
		"type":        string(t.Kind),
		"amount":      t.Amount.StringFixed(2),
		"description": t.Description,
		"status":      string(t.Status),
		"account":     maskNumber(acc.Number),
	}
}

// validAmount enforces the engine's defensive numeric contract:
// strictly positive, at most two fraction digits. Upstream validation
// should already have rejected anything else.
func validAmount(a decimal.Decimal) bool {
	return a.IsPositive() && a.Equal(a.Round(2))
}

func newReference() string {
	return uuid.New().String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func last4(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

func maskNumber(number string) string {
	return "•••• " + last4(number)
}

package alerts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evertrust/banking/internal/models"
	"github.com/shopspring/decimal"
)

// PrefsStore reads and writes per-user alert preferences. A row is
// created lazily with defaults the first time it is read or written;
// there is exactly one per user.
type PrefsStore struct {
	db *sql.DB
}

func NewPrefsStore(db *sql.DB) *PrefsStore {
	return &PrefsStore{db: db}
}

const prefsSelect = `
	SELECT id, user_id, low_balance, low_balance_threshold, large_tx, large_tx_threshold, card_change, email_enabled
	FROM alert_prefs
	WHERE user_id = $1`

const prefsInsert = `
	INSERT INTO alert_prefs (user_id, low_balance, low_balance_threshold, large_tx, large_tx_threshold, card_change, email_enabled)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

type row interface {
	Scan(dest ...any) error
}

func scanPrefs(r row) (models.AlertPrefs, error) {
	var p models.AlertPrefs
	var lowThreshold, largeThreshold string
	err := r.Scan(&p.ID, &p.UserID, &p.LowBalance, &lowThreshold, &p.LargeTx, &largeThreshold, &p.CardChange, &p.EmailEnabled)
	if err != nil {
		return p, err
	}
	if p.LowBalanceThreshold, err = decimal.NewFromString(lowThreshold); err != nil {
		return p, fmt.Errorf("prefs %d: bad low balance threshold: %w", p.ID, err)
	}
	if p.LargeTxThreshold, err = decimal.NewFromString(largeThreshold); err != nil {
		return p, fmt.Errorf("prefs %d: bad large tx threshold: %w", p.ID, err)
	}
	return p, nil
}

// GetOrCreateTx reads preferences inside the ledger operation's own
// transaction, so a concurrent preference update cannot change the
// thresholds an in-flight operation is judged against.
func (s *PrefsStore) GetOrCreateTx(tx *sql.Tx, userID int64) (models.AlertPrefs, error) {
	p, err := scanPrefs(tx.QueryRow(prefsSelect, userID))
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return p, err
	}

	p = models.DefaultAlertPrefs(userID)
	err = tx.QueryRow(prefsInsert, p.UserID, p.LowBalance, p.LowBalanceThreshold.StringFixed(2),
		p.LargeTx, p.LargeTxThreshold.StringFixed(2), p.CardChange, p.EmailEnabled).Scan(&p.ID)
	return p, err
}

func (s *PrefsStore) GetOrCreate(ctx context.Context, userID int64) (models.AlertPrefs, error) {
	p, err := scanPrefs(s.db.QueryRowContext(ctx, prefsSelect, userID))
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return p, err
	}

	p = models.DefaultAlertPrefs(userID)
	err = s.db.QueryRowContext(ctx, prefsInsert, p.UserID, p.LowBalance, p.LowBalanceThreshold.StringFixed(2),
		p.LargeTx, p.LargeTxThreshold.StringFixed(2), p.CardChange, p.EmailEnabled).Scan(&p.ID)
	return p, err
}

// Update writes the full preference row; the handler merges the PATCH
// fields into the current row before calling this.
func (s *PrefsStore) Update(ctx context.Context, p models.AlertPrefs) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE alert_prefs
		SET low_balance = $1, low_balance_threshold = $2, large_tx = $3, large_tx_threshold = $4, card_change = $5, email_enabled = $6
		WHERE user_id = $7`,
		p.LowBalance, p.LowBalanceThreshold.StringFixed(2), p.LargeTx, p.LargeTxThreshold.StringFixed(2),
		p.CardChange, p.EmailEnabled, p.UserID)
	return err
}

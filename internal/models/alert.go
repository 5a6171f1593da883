package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AlertType string

const (
	AlertLowBalance AlertType = "low_balance"
	AlertLargeTx    AlertType = "large_tx"
	AlertCardChange AlertType = "card_change"
)

type Alert struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Type      AlertType `json:"type" db:"type"`
	Message   string    `json:"message" db:"message"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AlertPrefs exists exactly once per user and is created lazily with
// these defaults the first time it is read or written.
type AlertPrefs struct {
	ID                  int64           `json:"id" db:"id"`
	UserID              int64           `json:"user_id" db:"user_id"`
	LowBalance          bool            `json:"low_balance" db:"low_balance"`
	LowBalanceThreshold decimal.Decimal `json:"low_balance_threshold" db:"low_balance_threshold"`
	LargeTx             bool            `json:"large_tx" db:"large_tx"`
	LargeTxThreshold    decimal.Decimal `json:"large_tx_threshold" db:"large_tx_threshold"`
	CardChange          bool            `json:"card_change" db:"card_change"`
	EmailEnabled        bool            `json:"email_enabled" db:"email_enabled"`
}

// DefaultAlertPrefs mirrors the defaults applied on first access.
func DefaultAlertPrefs(userID int64) AlertPrefs {
	return AlertPrefs{
		UserID:              userID,
		LowBalance:          true,
		LowBalanceThreshold: decimal.NewFromInt(100),
		LargeTx:             true,
		LargeTxThreshold:    decimal.NewFromInt(1000),
		CardChange:          true,
		EmailEnabled:        true,
	}
}

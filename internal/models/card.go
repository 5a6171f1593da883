package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Card struct {
	ID         int64           `json:"id" db:"id"`
	UserID     int64           `json:"user_id" db:"user_id"`
	Last4      string          `json:"last4" db:"last4"`
	Brand      string          `json:"brand" db:"brand"`
	IsFrozen   bool            `json:"is_frozen" db:"is_frozen"`
	PerTxLimit decimal.Decimal `json:"per_tx_limit" db:"per_tx_limit"`
	DailyLimit decimal.Decimal `json:"daily_limit" db:"daily_limit"`
	Expires    time.Time       `json:"expires" db:"expires"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountChecking AccountType = "Checking"
	AccountSavings  AccountType = "Savings"
)

// Account is the unit the ledger mutates. Balance is NUMERIC(15,2) in
// Postgres and never negative; Version backs optimistic locking.
type Account struct {
	ID        int64           `json:"id" db:"id"`
	UserID    int64           `json:"user_id" db:"user_id"`
	Type      AccountType     `json:"type" db:"type"`
	Number    string          `json:"number" db:"number"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"currency"`
	Version   int             `json:"-" db:"version"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

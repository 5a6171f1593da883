package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MobileDepositStatus tracks a cheque image from intake to resolution.
type MobileDepositStatus string

const (
	MobileDepositPending   MobileDepositStatus = "Pending"
	MobileDepositProcessed MobileDepositStatus = "Processed"
	MobileDepositRejected  MobileDepositStatus = "Rejected"
)

// MobileDeposit is the intake record for a deposited cheque image. The
// balance is only credited when the record is resolved Processed; the
// intake itself never moves money.
type MobileDeposit struct {
	ID          int64               `json:"id" db:"id"`
	UserID      int64               `json:"user_id" db:"user_id"`
	AccountID   int64               `json:"account_id" db:"account_id"`
	Filename    string              `json:"filename" db:"filename"`
	Amount      decimal.Decimal     `json:"amount" db:"amount"`
	Status      MobileDepositStatus `json:"status" db:"status"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time          `json:"processed_at,omitempty" db:"processed_at"`
}

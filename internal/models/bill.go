package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Biller struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	Category      string    `json:"category,omitempty" db:"category"`
	AccountNumber string    `json:"account_number,omitempty" db:"account_number"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Bill struct {
	ID        int64             `json:"id" db:"id"`
	UserID    int64             `json:"user_id" db:"user_id"`
	BillerID  int64             `json:"biller_id" db:"biller_id"`
	AccountID int64             `json:"account_id" db:"account_id"`
	Amount    decimal.Decimal   `json:"amount" db:"amount"`
	Status    TransactionStatus `json:"status" db:"status"`
	DueDate   time.Time         `json:"due_date" db:"due_date"`
	PaidDate  *time.Time        `json:"paid_date,omitempty" db:"paid_date"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindDeposit          TransactionKind = "Deposit"
	KindWithdrawal       TransactionKind = "Withdrawal"
	KindTransfer         TransactionKind = "Transfer"
	KindExternalTransfer TransactionKind = "External Transfer"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "Pending"
	StatusProcessing TransactionStatus = "Processing"
	StatusCompleted  TransactionStatus = "Completed"
	StatusFailed     TransactionStatus = "Failed"
)

// Transaction records exactly one balance delta on exactly one account.
// Rows are immutable once Completed except for status transitions on
// the external-transfer kind.
type Transaction struct {
	ID           int64             `json:"id" db:"id"`
	AccountID    int64             `json:"account_id" db:"account_id"`
	Kind         TransactionKind   `json:"type" db:"type"`
	Amount       decimal.Decimal   `json:"amount" db:"amount"`
	Description  string            `json:"description" db:"description"`
	Counterparty string            `json:"counterparty" db:"counterparty"`
	Status       TransactionStatus `json:"status" db:"status"`
	Reference    string            `json:"reference" db:"reference"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}

// ExternalTransfer links 1:1 to a Transaction whose amount equals
// Amount + Fee. Status moves Pending/Processing -> Completed | Failed.
type ExternalTransfer struct {
	ID                 int64             `json:"id" db:"id"`
	UserID             int64             `json:"user_id" db:"user_id"`
	FromAccountID      int64             `json:"from_account_id" db:"from_account_id"`
	TransactionID      int64             `json:"transaction_id" db:"transaction_id"`
	BankName           string            `json:"bank_name" db:"bank_name"`
	BankCode           string            `json:"bank_code" db:"bank_code"`
	BeneficiaryName    string            `json:"beneficiary_name" db:"beneficiary_name"`
	BeneficiaryAccount string            `json:"beneficiary_account" db:"beneficiary_account"`
	Amount             decimal.Decimal   `json:"amount" db:"amount"`
	Fee                decimal.Decimal   `json:"fee" db:"fee"`
	Status             TransactionStatus `json:"status" db:"status"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
}

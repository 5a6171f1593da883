package models

import "time"

// ChequeStatus tracks a cheque-book request through fulfilment.
type ChequeStatus string

const (
	ChequeRequested ChequeStatus = "Requested"
	ChequeProcessed ChequeStatus = "Processed"
	ChequeShipped   ChequeStatus = "Shipped"
	ChequeReceived  ChequeStatus = "Received"
	ChequeCanceled  ChequeStatus = "Canceled"
)

type Cheque struct {
	ID          int64        `json:"id" db:"id"`
	UserID      int64        `json:"user_id" db:"user_id"`
	AccountID   int64        `json:"account_id" db:"account_id"`
	Status      ChequeStatus `json:"request_status" db:"request_status"`
	Leaves      int          `json:"leaves" db:"leaves"`
	RequestedAt time.Time    `json:"requested_at" db:"requested_at"`
	CanceledAt  *time.Time   `json:"canceled_at,omitempty" db:"canceled_at"`
}

package audit

// Payload is the closed set of audit metadata variants, one per action.
// Consumers decode the metadata column by switching on the action
// string instead of duck-typing a free-form map.
type Payload interface {
	Action() string
}

type DepositCreated struct {
	AccountID     int64  `json:"account_id"`
	AccountNumber string `json:"account_number"`
	Amount        string `json:"amount"`
	Description   string `json:"description,omitempty"`
}

func (DepositCreated) Action() string { return "deposit_created" }

type WithdrawalCreated struct {
	AccountID     int64  `json:"account_id"`
	AccountNumber string `json:"account_number"`
	Amount        string `json:"amount"`
	Description   string `json:"description,omitempty"`
}

func (WithdrawalCreated) Action() string { return "withdrawal_created" }

type InternalTransferCreated struct {
	FromAccountID     int64  `json:"from_account_id"`
	FromAccountNumber string `json:"from_account_number"`
	ToAccountID       int64  `json:"to_account_id"`
	ToAccountNumber   string `json:"to_account_number"`
	Amount            string `json:"amount"`
	Description       string `json:"description,omitempty"`
}

func (InternalTransferCreated) Action() string { return "internal_transfer_created" }

type ExternalTransferCreated struct {
	FromAccountID     int64  `json:"from_account_id"`
	FromAccountNumber string `json:"from_account_number"`
	BankName          string `json:"bank_name"`
	BeneficiaryName   string `json:"beneficiary_name"`
	// Last four digits only; full beneficiary accounts never reach the
	// audit trail.
	BeneficiaryAccountLast4 string `json:"beneficiary_account_last4"`
	Amount                  string `json:"amount"`
	Fee                     string `json:"fee"`
}

func (ExternalTransferCreated) Action() string { return "external_transfer_created" }

type ExternalTransferCompleted struct {
	TransferID int64  `json:"transfer_id"`
	Outcome    string `json:"outcome"`
	Refunded   string `json:"refunded,omitempty"`
}

func (ExternalTransferCompleted) Action() string { return "external_transfer_completed" }

type BillPaid struct {
	Biller    string `json:"biller"`
	AccountID int64  `json:"account_id"`
	Amount    string `json:"amount"`
}

func (BillPaid) Action() string { return "bill_paid" }

type BillerCreated struct {
	Name string `json:"name"`
}

func (BillerCreated) Action() string { return "biller_created" }

type CardUpdated struct {
	Frozen     *bool  `json:"frozen,omitempty"`
	PerTxLimit string `json:"per_tx_limit,omitempty"`
	DailyLimit string `json:"daily_limit,omitempty"`
}

func (CardUpdated) Action() string { return "card_updated" }

type AlertPrefsUpdated struct {
	Fields []string `json:"fields"`
}

func (AlertPrefsUpdated) Action() string { return "alert_prefs_updated" }

type ChequeRequested struct {
	AccountID int64 `json:"account_id"`
	Leaves    int   `json:"leaves"`
}

func (ChequeRequested) Action() string { return "cheque_requested" }

type ChequeCanceled struct {
	ChequeID int64 `json:"cheque_id"`
}

func (ChequeCanceled) Action() string { return "cheque_canceled" }

type MobileDepositCreated struct {
	AccountID int64  `json:"account_id"`
	Amount    string `json:"amount"`
	Filename  string `json:"filename"`
}

func (MobileDepositCreated) Action() string { return "mobile_deposit_created" }

type MobileDepositResolved struct {
	DepositID int64  `json:"deposit_id"`
	Outcome   string `json:"outcome"`
}

func (MobileDepositResolved) Action() string { return "mobile_deposit_resolved" }

type UserRegistered struct {
	Email         string `json:"email"`
	AccountNumber string `json:"account_number"`
}

func (UserRegistered) Action() string { return "user_registered" }

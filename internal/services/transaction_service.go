package services

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/evertrust/banking/internal/ledger"
	"github.com/evertrust/banking/internal/middleware"
	"github.com/evertrust/banking/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// TransactionService exposes the ledger engine over HTTP. It owns no
// balance logic: every mutation goes through the engine, every read is
// a plain query.
type TransactionService struct {
	db        *sql.DB
	engine    *ledger.Engine
	validator *ValidationHelper
}

func NewTransactionService(db *sql.DB, engine *ledger.Engine) *TransactionService {
	return &TransactionService{db: db, engine: engine, validator: NewValidationHelper()}
}

type DepositRequest struct {
	AccountID    int64           `json:"account_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description" validate:"omitempty,max=255"`
	Counterparty string          `json:"counterparty" validate:"omitempty,max=255"`
}

type WithdrawRequest struct {
	AccountID    int64           `json:"account_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description" validate:"omitempty,max=255"`
	Counterparty string          `json:"counterparty" validate:"omitempty,max=255"`
}

type InternalTransferRequest struct {
	FromAccountID int64           `json:"from_account_id" validate:"required"`
	ToAccountID   int64           `json:"to_account_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description" validate:"omitempty,max=255"`
}

type ExternalTransferRequest struct {
	FromAccountID      int64           `json:"from_account_id" validate:"required"`
	BankName           string          `json:"bank_name" validate:"required,max=128"`
	BankCode           string          `json:"bank_code" validate:"required,max=16"`
	BeneficiaryName    string          `json:"beneficiary_name" validate:"required,max=128"`
	BeneficiaryAccount string          `json:"beneficiary_account" validate:"required,min=6,max=32"`
	Amount             decimal.Decimal `json:"amount"`
}

type CompleteTransferRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=Completed Failed"`
}

// sendLedgerError translates engine sentinels into HTTP statuses.
func sendLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
	case errors.Is(err, ledger.ErrBillerNotFound):
		SendErrorResponse(w, "Biller not found", http.StatusNotFound, nil)
	case errors.Is(err, ledger.ErrTransferNotFound):
		SendErrorResponse(w, "Transfer not found", http.StatusNotFound, nil)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		SendErrorResponse(w, "Insufficient funds", http.StatusUnprocessableEntity, nil)
	case errors.Is(err, ledger.ErrSameAccount):
		SendErrorResponse(w, "Cannot transfer to the same account", http.StatusBadRequest, nil)
	case errors.Is(err, ledger.ErrInvalidAmount):
		SendErrorResponse(w, "Amount must be positive with at most two decimal places", http.StatusBadRequest, nil)
	case errors.Is(err, ledger.ErrConflict):
		SendErrorResponse(w, "Operation conflicted with a concurrent update, please retry", http.StatusConflict, nil)
	default:
		log.Printf("[TRANSACTION] Operation failed: %v", err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
	}
}

func (s *TransactionService) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req DepositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	res, err := s.engine.Deposit(r.Context(), userID, ledger.DepositRequest{
		AccountID:    req.AccountID,
		Amount:       req.Amount,
		Description:  req.Description,
		Counterparty: req.Counterparty,
	})
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (s *TransactionService) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req WithdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	res, err := s.engine.Withdraw(r.Context(), userID, ledger.WithdrawRequest{
		AccountID:    req.AccountID,
		Amount:       req.Amount,
		Description:  req.Description,
		Counterparty: req.Counterparty,
	})
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (s *TransactionService) TransferInternal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req InternalTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	res, err := s.engine.TransferInternal(r.Context(), userID, ledger.InternalTransferRequest{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Description:   req.Description,
	})
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (s *TransactionService) TransferExternal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ExternalTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	res, err := s.engine.TransferExternal(r.Context(), userID, ledger.ExternalTransferRequest{
		FromAccountID:      req.FromAccountID,
		BankName:           req.BankName,
		BankCode:           req.BankCode,
		BeneficiaryName:    req.BeneficiaryName,
		BeneficiaryAccount: req.BeneficiaryAccount,
		Amount:             req.Amount,
	})
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, res)
}

// CompleteExternalTransfer is the settlement callback surface. It is
// idempotent: replays return the transfer's current terminal state.
// The caller must own the transfer.
func (s *TransactionService) CompleteExternalTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	transferID, err := strconv.ParseInt(chi.URLParam(r, "transferId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid transfer id", http.StatusBadRequest, nil)
		return
	}

	var req CompleteTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	et, err := s.engine.CompleteExternalTransfer(r.Context(), userID, transferID, models.TransactionStatus(req.Outcome))
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, et)
}

// ListTransactions returns the caller's history, newest first, with
// optional account, kind and date-range filters.
func (s *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := `
		SELECT t.id, t.account_id, t.type, t.amount, t.description, t.counterparty, t.status, t.reference, t.created_at
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1`
	args := []any{userID}

	if v := r.URL.Query().Get("account_id"); v != "" {
		accountID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			SendErrorResponse(w, "Invalid account_id filter", http.StatusBadRequest, nil)
			return
		}
		args = append(args, accountID)
		query += ` AND t.account_id = $` + strconv.Itoa(len(args))
	}
	if v := r.URL.Query().Get("type"); v != "" {
		args = append(args, v)
		query += ` AND t.type = $` + strconv.Itoa(len(args))
	}
	if v := r.URL.Query().Get("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			SendErrorResponse(w, "Invalid from date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
			return
		}
		args = append(args, from)
		query += ` AND t.created_at >= $` + strconv.Itoa(len(args))
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			SendErrorResponse(w, "Invalid to date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
			return
		}
		args = append(args, to.AddDate(0, 0, 1))
		query += ` AND t.created_at < $` + strconv.Itoa(len(args))
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	args = append(args, limit)
	query += ` ORDER BY t.created_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		log.Printf("[TRANSACTION] History query failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			log.Printf("[TRANSACTION] History scan failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, t)
	}

	writeJSON(w, http.StatusOK, transactions)
}

func (s *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	txID, err := strconv.ParseInt(chi.URLParam(r, "txId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid transaction id", http.StatusBadRequest, nil)
		return
	}

	t, err := scanTransaction(s.db.QueryRowContext(r.Context(), `
		SELECT t.id, t.account_id, t.type, t.amount, t.description, t.counterparty, t.status, t.reference, t.created_at
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.id = $1 AND a.user_id = $2`, txID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[TRANSACTION] Fetch failed for transaction %d: %v", txID, err)
		SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func scanTransaction(r interface{ Scan(...any) error }) (models.Transaction, error) {
	var t models.Transaction
	var amount string
	err := r.Scan(&t.ID, &t.AccountID, &t.Kind, &amount, &t.Description, &t.Counterparty, &t.Status, &t.Reference, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	t.Amount, err = decimal.NewFromString(amount)
	return t, err
}

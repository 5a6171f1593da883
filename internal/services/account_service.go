package services

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/evertrust/banking/internal/middleware"
	"github.com/evertrust/banking/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type AccountService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db, validator: NewValidationHelper()}
}

type CreateAccountRequest struct {
	Type string `json:"type" validate:"required,oneof=Checking Savings"`
}

const accountColumns = `id, user_id, type, number, balance, currency, created_at, updated_at`

func scanAccount(r interface{ Scan(...any) error }) (models.Account, error) {
	var acc models.Account
	var balance string
	err := r.Scan(&acc.ID, &acc.UserID, &acc.Type, &acc.Number, &balance, &acc.Currency, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return acc, err
	}
	acc.Balance, err = decimal.NewFromString(balance)
	return acc, err
}

func (s *AccountService) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1
		ORDER BY id`, userID)
	if err != nil {
		log.Printf("[ACCOUNT] List failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			log.Printf("[ACCOUNT] Scan failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch accounts", http.StatusInternalServerError, nil)
			return
		}
		accounts = append(accounts, acc)
	}

	writeJSON(w, http.StatusOK, accounts)
}

func (s *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	acc, err := scanAccount(s.db.QueryRowContext(r.Context(), `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1 AND user_id = $2`, accountID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[ACCOUNT] Fetch failed for account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// CreateAccount opens an additional account for the user; the first
// Checking account is opened at registration.
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	number := generateAccountNumber()
	acc, err := scanAccount(s.db.QueryRowContext(r.Context(), `
		INSERT INTO accounts (user_id, type, number, balance, currency, version, created_at, updated_at)
		VALUES ($1, $2, $3, '0.00', 'USD', 1, NOW(), NOW())
		RETURNING `+accountColumns, userID, req.Type, number))
	if err != nil {
		log.Printf("[ACCOUNT] Create failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Opened %s account %s for user %d", acc.Type, acc.Number, userID)
	writeJSON(w, http.StatusCreated, acc)
}

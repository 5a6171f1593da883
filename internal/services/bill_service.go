package services

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/evertrust/banking/internal/audit"
	"github.com/evertrust/banking/internal/ledger"
	"github.com/evertrust/banking/internal/middleware"
	"github.com/evertrust/banking/internal/models"
	"github.com/shopspring/decimal"
)

type BillService struct {
	db        *sql.DB
	engine    *ledger.Engine
	audit     *audit.Recorder
	validator *ValidationHelper
}

func NewBillService(db *sql.DB, engine *ledger.Engine, auditRecorder *audit.Recorder) *BillService {
	return &BillService{db: db, engine: engine, audit: auditRecorder, validator: NewValidationHelper()}
}

type CreateBillerRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=128"`
	Category      string `json:"category" validate:"omitempty,max=64"`
	AccountNumber string `json:"account_number" validate:"omitempty,max=32"`
}

type PayBillRequest struct {
	BillerID  int64           `json:"biller_id" validate:"required"`
	AccountID int64           `json:"account_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	DueDate   string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

func (s *BillService) ListBillers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, user_id, name, category, account_number, created_at
		FROM billers
		WHERE user_id = $1
		ORDER BY name`, userID)
	if err != nil {
		log.Printf("[BILL] Biller list failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch billers", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	billers := []models.Biller{}
	for rows.Next() {
		var b models.Biller
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Category, &b.AccountNumber, &b.CreatedAt); err != nil {
			log.Printf("[BILL] Biller scan failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch billers", http.StatusInternalServerError, nil)
			return
		}
		billers = append(billers, b)
	}

	writeJSON(w, http.StatusOK, billers)
}

func (s *BillService) CreateBiller(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateBillerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	biller := models.Biller{
		UserID:        userID,
		Name:          req.Name,
		Category:      req.Category,
		AccountNumber: req.AccountNumber,
	}
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO billers (user_id, name, category, account_number, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		biller.UserID, biller.Name, biller.Category, biller.AccountNumber).
		Scan(&biller.ID, &biller.CreatedAt)
	if err != nil {
		log.Printf("[BILL] Biller creation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create biller", http.StatusInternalServerError, nil)
		return
	}

	if s.audit != nil {
		s.audit.Record(r.Context(), userID, "biller", biller.ID, audit.BillerCreated{Name: biller.Name})
	}

	writeJSON(w, http.StatusCreated, biller)
}

func (s *BillService) PayBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req PayBillRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var dueDate time.Time
	if req.DueDate != "" {
		dueDate, _ = time.Parse("2006-01-02", req.DueDate)
	}

	res, err := s.engine.PayBill(r.Context(), userID, ledger.BillPaymentRequest{
		BillerID:  req.BillerID,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		DueDate:   dueDate,
	})
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (s *BillService) ListBills(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, user_id, biller_id, account_id, amount, status, due_date, paid_date, created_at
		FROM bills
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		log.Printf("[BILL] Bill list failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch bills", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	bills := []models.Bill{}
	for rows.Next() {
		var b models.Bill
		var amount string
		if err := rows.Scan(&b.ID, &b.UserID, &b.BillerID, &b.AccountID, &amount, &b.Status, &b.DueDate, &b.PaidDate, &b.CreatedAt); err != nil {
			log.Printf("[BILL] Bill scan failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch bills", http.StatusInternalServerError, nil)
			return
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			log.Printf("[BILL] Bad stored amount for bill %d: %v", b.ID, err)
			SendErrorResponse(w, "Failed to fetch bills", http.StatusInternalServerError, nil)
			return
		}
		bills = append(bills, b)
	}

	writeJSON(w, http.StatusOK, bills)
}

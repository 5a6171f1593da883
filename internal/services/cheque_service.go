package services

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/evertrust/banking/internal/audit"
	"github.com/evertrust/banking/internal/middleware"
	"github.com/evertrust/banking/internal/models"
	"github.com/go-chi/chi/v5"
)

// ChequeService manages cheque-book requests. Requests never touch
// balances; fulfilment is handled out of band.
type ChequeService struct {
	db        *sql.DB
	audit     *audit.Recorder
	validator *ValidationHelper
}

func NewChequeService(db *sql.DB, auditRecorder *audit.Recorder) *ChequeService {
	return &ChequeService{db: db, audit: auditRecorder, validator: NewValidationHelper()}
}

type RequestChequeRequest struct {
	AccountID int64 `json:"account_id" validate:"required"`
	Leaves    int   `json:"leaves" validate:"omitempty,oneof=25 50 100"`
}

const defaultChequeLeaves = 25

func (s *ChequeService) ListCheques(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, user_id, account_id, request_status, leaves, requested_at, canceled_at
		FROM cheques
		WHERE user_id = $1
		ORDER BY requested_at DESC`, userID)
	if err != nil {
		log.Printf("[CHEQUE] List failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch cheque requests", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	cheques := []models.Cheque{}
	for rows.Next() {
		var c models.Cheque
		if err := rows.Scan(&c.ID, &c.UserID, &c.AccountID, &c.Status, &c.Leaves, &c.RequestedAt, &c.CanceledAt); err != nil {
			log.Printf("[CHEQUE] Scan failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch cheque requests", http.StatusInternalServerError, nil)
			return
		}
		cheques = append(cheques, c)
	}

	writeJSON(w, http.StatusOK, cheques)
}

// RequestCheque creates a cheque-book request on one of the caller's
// accounts. One open request per account at a time.
func (s *ChequeService) RequestCheque(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req RequestChequeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.Leaves == 0 {
		req.Leaves = defaultChequeLeaves
	}

	var owned bool
	err := s.db.QueryRowContext(r.Context(), `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1 AND user_id = $2)`,
		req.AccountID, userID).Scan(&owned)
	if err != nil {
		log.Printf("[CHEQUE] Account check failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create cheque request", http.StatusInternalServerError, nil)
		return
	}
	if !owned {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	var pending bool
	err = s.db.QueryRowContext(r.Context(), `
		SELECT EXISTS(SELECT 1 FROM cheques WHERE user_id = $1 AND account_id = $2 AND request_status = $3)`,
		userID, req.AccountID, models.ChequeRequested).Scan(&pending)
	if err != nil {
		log.Printf("[CHEQUE] Pending check failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create cheque request", http.StatusInternalServerError, nil)
		return
	}
	if pending {
		SendErrorResponse(w, "You already have a pending cheque request for this account", http.StatusBadRequest, nil)
		return
	}

	cheque := models.Cheque{
		UserID:    userID,
		AccountID: req.AccountID,
		Status:    models.ChequeRequested,
		Leaves:    req.Leaves,
	}
	err = s.db.QueryRowContext(r.Context(), `
		INSERT INTO cheques (user_id, account_id, request_status, leaves, requested_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, requested_at`,
		cheque.UserID, cheque.AccountID, cheque.Status, cheque.Leaves).
		Scan(&cheque.ID, &cheque.RequestedAt)
	if err != nil {
		log.Printf("[CHEQUE] Insert failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create cheque request", http.StatusInternalServerError, nil)
		return
	}

	if s.audit != nil {
		s.audit.Record(r.Context(), userID, "cheque", cheque.ID,
			audit.ChequeRequested{AccountID: cheque.AccountID, Leaves: cheque.Leaves})
	}

	writeJSON(w, http.StatusCreated, cheque)
}

// CancelCheque withdraws a request that has not entered fulfilment.
func (s *ChequeService) CancelCheque(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chequeID, err := strconv.ParseInt(chi.URLParam(r, "chequeId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid cheque id", http.StatusBadRequest, nil)
		return
	}

	var cheque models.Cheque
	err = s.db.QueryRowContext(r.Context(), `
		SELECT id, user_id, account_id, request_status, leaves, requested_at, canceled_at
		FROM cheques
		WHERE id = $1 AND user_id = $2`, chequeID, userID).
		Scan(&cheque.ID, &cheque.UserID, &cheque.AccountID, &cheque.Status, &cheque.Leaves, &cheque.RequestedAt, &cheque.CanceledAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Cheque request not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CHEQUE] Lookup failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to cancel cheque request", http.StatusInternalServerError, nil)
		return
	}
	if cheque.Status != models.ChequeRequested {
		SendErrorResponse(w, "Only requested cheques can be canceled", http.StatusBadRequest, nil)
		return
	}

	// Status is re-checked in the UPDATE so a concurrent fulfilment
	// cannot be canceled out from under it.
	var canceledAt time.Time
	err = s.db.QueryRowContext(r.Context(), `
		UPDATE cheques
		SET request_status = $1, canceled_at = NOW()
		WHERE id = $2 AND user_id = $3 AND request_status = $4
		RETURNING canceled_at`,
		models.ChequeCanceled, chequeID, userID, models.ChequeRequested).Scan(&canceledAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Only requested cheques can be canceled", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		log.Printf("[CHEQUE] Cancel failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to cancel cheque request", http.StatusInternalServerError, nil)
		return
	}

	cheque.Status = models.ChequeCanceled
	cheque.CanceledAt = &canceledAt

	if s.audit != nil {
		s.audit.Record(r.Context(), userID, "cheque", cheque.ID, audit.ChequeCanceled{ChequeID: cheque.ID})
	}

	writeJSON(w, http.StatusOK, cheque)
}

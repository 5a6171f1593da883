package services

import (
	"database/sql"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/evertrust/banking/internal/audit"
	"github.com/evertrust/banking/internal/ledger"
	"github.com/evertrust/banking/internal/middleware"
	"github.com/evertrust/banking/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositService handles mobile cheque deposits. Intake writes a
// Pending record and stores the image; the balance is only credited
// when the record is resolved, through the ledger engine.
type DepositService struct {
	db        *sql.DB
	engine    *ledger.Engine
	audit     *audit.Recorder
	uploadDir string
	validator *ValidationHelper
}

func NewDepositService(db *sql.DB, engine *ledger.Engine, auditRecorder *audit.Recorder, uploadDir string) *DepositService {
	return &DepositService{db: db, engine: engine, audit: auditRecorder, uploadDir: uploadDir, validator: NewValidationHelper()}
}

const maxDepositImageBytes = 10 << 20 // 10 MB

const mobileDepositColumns = `id, user_id, account_id, filename, amount, status, created_at, processed_at`

func scanMobileDeposit(r interface{ Scan(...any) error }) (models.MobileDeposit, error) {
	var d models.MobileDeposit
	var amount string
	err := r.Scan(&d.ID, &d.UserID, &d.AccountID, &d.Filename, &amount, &d.Status, &d.CreatedAt, &d.ProcessedAt)
	if err != nil {
		return d, err
	}
	d.Amount, err = decimal.NewFromString(amount)
	return d, err
}

func (s *DepositService) ListMobileDeposits(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT `+mobileDepositColumns+`
		FROM mobile_deposits
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		log.Printf("[DEPOSIT] List failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch deposits", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	deposits := []models.MobileDeposit{}
	for rows.Next() {
		d, err := scanMobileDeposit(rows)
		if err != nil {
			log.Printf("[DEPOSIT] Scan failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch deposits", http.StatusInternalServerError, nil)
			return
		}
		deposits = append(deposits, d)
	}

	writeJSON(w, http.StatusOK, deposits)
}

// CreateMobileDeposit accepts a multipart cheque image with account_id
// and amount fields, stores the image under a generated name, and
// records the deposit as Pending.
func (s *DepositService) CreateMobileDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDepositImageBytes)
	if err := r.ParseMultipartForm(maxDepositImageBytes); err != nil {
		SendErrorResponse(w, "Invalid multipart request", http.StatusBadRequest, nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		SendErrorResponse(w, "No file uploaded", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	accountID, err := strconv.ParseInt(r.FormValue("account_id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid account_id", http.StatusBadRequest, nil)
		return
	}
	amount, err := decimal.NewFromString(r.FormValue("amount"))
	if err != nil || !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		return
	}

	var owned bool
	err = s.db.QueryRowContext(r.Context(), `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1 AND user_id = $2)`,
		accountID, userID).Scan(&owned)
	if err != nil {
		log.Printf("[DEPOSIT] Account check failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create deposit", http.StatusInternalServerError, nil)
		return
	}
	if !owned {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	filename := uuid.New().String() + filepath.Ext(header.Filename)
	if err := s.saveImage(file, filename); err != nil {
		log.Printf("[DEPOSIT] Image save failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to store cheque image", http.StatusInternalServerError, nil)
		return
	}

	dep := models.MobileDeposit{
		UserID:    userID,
		AccountID: accountID,
		Filename:  filename,
		Amount:    amount,
		Status:    models.MobileDepositPending,
	}
	err = s.db.QueryRowContext(r.Context(), `
		INSERT INTO mobile_deposits (user_id, account_id, filename, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`,
		dep.UserID, dep.AccountID, dep.Filename, dep.Amount.StringFixed(2), dep.Status).
		Scan(&dep.ID, &dep.CreatedAt)
	if err != nil {
		log.Printf("[DEPOSIT] Insert failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create deposit", http.StatusInternalServerError, nil)
		return
	}

	if s.audit != nil {
		s.audit.Record(r.Context(), userID, "mobile_deposit", dep.ID, audit.MobileDepositCreated{
			AccountID: dep.AccountID,
			Amount:    dep.Amount.StringFixed(2),
			Filename:  dep.Filename,
		})
	}

	writeJSON(w, http.StatusCreated, dep)
}

type ResolveDepositRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=Processed Rejected"`
}

// ResolveMobileDeposit moves a Pending deposit to Processed or
// Rejected. Processed credits the account through the engine, so alert
// evaluation, audit and receipt notification all fire as for any other
// deposit. The Pending status is claimed before crediting and released
// again if the credit fails.
func (s *DepositService) ResolveMobileDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	depositID, err := strconv.ParseInt(chi.URLParam(r, "depositId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid deposit id", http.StatusBadRequest, nil)
		return
	}

	var req ResolveDepositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	outcome := models.MobileDepositStatus(req.Outcome)

	dep, err := scanMobileDeposit(s.db.QueryRowContext(r.Context(), `
		SELECT `+mobileDepositColumns+`
		FROM mobile_deposits
		WHERE id = $1 AND user_id = $2`, depositID, userID))
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Deposit not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[DEPOSIT] Lookup failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to resolve deposit", http.StatusInternalServerError, nil)
		return
	}
	if dep.Status != models.MobileDepositPending {
		SendErrorResponse(w, "Only pending deposits can be resolved", http.StatusBadRequest, nil)
		return
	}

	// Claim the record first; the status predicate loses the race to a
	// concurrent resolution attempt.
	claimed, err := scanMobileDeposit(s.db.QueryRowContext(r.Context(), `
		UPDATE mobile_deposits
		SET status = $1, processed_at = NOW()
		WHERE id = $2 AND user_id = $3 AND status = $4
		RETURNING `+mobileDepositColumns,
		outcome, depositID, userID, models.MobileDepositPending))
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Only pending deposits can be resolved", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		log.Printf("[DEPOSIT] Claim failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to resolve deposit", http.StatusInternalServerError, nil)
		return
	}

	if outcome == models.MobileDepositProcessed {
		_, err := s.engine.Deposit(r.Context(), userID, ledger.DepositRequest{
			AccountID:    claimed.AccountID,
			Amount:       claimed.Amount,
			Description:  "Mobile deposit",
			Counterparty: "Mobile Deposit",
		})
		if err != nil {
			if _, rerr := s.db.ExecContext(r.Context(), `
				UPDATE mobile_deposits SET status = $1, processed_at = NULL WHERE id = $2`,
				models.MobileDepositPending, depositID); rerr != nil {
				log.Printf("[DEPOSIT] Release after failed credit failed for deposit %d: %v", depositID, rerr)
			}
			sendLedgerError(w, err)
			return
		}
	}

	if s.audit != nil {
		s.audit.Record(r.Context(), userID, "mobile_deposit", claimed.ID,
			audit.MobileDepositResolved{DepositID: claimed.ID, Outcome: string(outcome)})
	}

	writeJSON(w, http.StatusOK, claimed)
}

func (s *DepositService) saveImage(src io.Reader, filename string) error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(s.uploadDir, filename))
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

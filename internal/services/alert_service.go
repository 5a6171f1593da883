package services

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/evertrust/banking/internal/alerts"
	"github.com/evertrust/banking/internal/audit"
	"github.com/evertrust/banking/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type AlertService struct {
	alertStore *alerts.Store
	prefs      *alerts.PrefsStore
	audit      *audit.Recorder
}

func NewAlertService(alertStore *alerts.Store, prefs *alerts.PrefsStore, auditRecorder *audit.Recorder) *AlertService {
	return &AlertService{alertStore: alertStore, prefs: prefs, audit: auditRecorder}
}

type UpdatePrefsRequest struct {
	LowBalance          *bool            `json:"low_balance"`
	LowBalanceThreshold *decimal.Decimal `json:"low_balance_threshold"`
	LargeTx             *bool            `json:"large_tx"`
	LargeTxThreshold    *decimal.Decimal `json:"large_tx_threshold"`
	CardChange          *bool            `json:"card_change"`
	EmailEnabled        *bool            `json:"email_enabled"`
}

func (s *AlertService) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	list, err := s.alertStore.ListByUser(r.Context(), userID, 50)
	if err != nil {
		log.Printf("[ALERT] List failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch alerts", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (s *AlertService) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	alertID, err := strconv.ParseInt(chi.URLParam(r, "alertId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid alert id", http.StatusBadRequest, nil)
		return
	}

	alert, err := s.alertStore.MarkRead(r.Context(), alertID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Alert not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[ALERT] Mark read failed for alert %d: %v", alertID, err)
		SendErrorResponse(w, "Failed to update alert", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

func (s *AlertService) GetPrefs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	prefs, err := s.prefs.GetOrCreate(r.Context(), userID)
	if err != nil {
		log.Printf("[ALERT] Prefs lookup failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch preferences", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

// UpdatePrefs merges the PATCH body into the stored row. Absent fields
// keep their current values.
func (s *AlertService) UpdatePrefs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req UpdatePrefsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if (req.LowBalanceThreshold != nil && !req.LowBalanceThreshold.IsPositive()) ||
		(req.LargeTxThreshold != nil && !req.LargeTxThreshold.IsPositive()) {
		SendErrorResponse(w, "Thresholds must be positive", http.StatusBadRequest, nil)
		return
	}

	prefs, err := s.prefs.GetOrCreate(r.Context(), userID)
	if err != nil {
		log.Printf("[ALERT] Prefs lookup failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch preferences", http.StatusInternalServerError, nil)
		return
	}

	var changed []string
	if req.LowBalance != nil {
		prefs.LowBalance = *req.LowBalance
		changed = append(changed, "low_balance")
	}
	if req.LowBalanceThreshold != nil {
		prefs.LowBalanceThreshold = *req.LowBalanceThreshold
		changed = append(changed, "low_balance_threshold")
	}
	if req.LargeTx != nil {
		prefs.LargeTx = *req.LargeTx
		changed = append(changed, "large_tx")
	}
	if req.LargeTxThreshold != nil {
		prefs.LargeTxThreshold = *req.LargeTxThreshold
		changed = append(changed, "large_tx_threshold")
	}
	if req.CardChange != nil {
		prefs.CardChange = *req.CardChange
		changed = append(changed, "card_change")
	}
	if req.EmailEnabled != nil {
		prefs.EmailEnabled = *req.EmailEnabled
		changed = append(changed, "email_enabled")
	}

	if len(changed) > 0 {
		if err := s.prefs.Update(r.Context(), prefs); err != nil {
			log.Printf("[ALERT] Prefs update failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to update preferences", http.StatusInternalServerError, nil)
			return
		}
		if s.audit != nil {
			s.audit.Record(r.Context(), userID, "alert_prefs", prefs.ID, audit.AlertPrefsUpdated{Fields: changed})
		}
	}

	writeJSON(w, http.StatusOK, prefs)
}

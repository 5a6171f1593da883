package services

import (
	"log"
	"net/http"
	"strconv"

	"github.com/evertrust/banking/internal/audit"
	"github.com/evertrust/banking/internal/middleware"
)

// AuditService exposes the per-user audit trail read surface.
type AuditService struct {
	recorder *audit.Recorder
}

func NewAuditService(recorder *audit.Recorder) *AuditService {
	return &AuditService{recorder: recorder}
}

func (s *AuditService) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
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

	entries, err := s.recorder.EventsByUser(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("[AUDIT] Export failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch audit events", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

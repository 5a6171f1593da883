package services

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/evertrust/banking/internal/alerts"
	"github.com/evertrust/banking/internal/audit"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func newAlertService(t *testing.T) (*AlertService, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	return NewAlertService(alerts.NewStore(db), alerts.NewPrefsStore(db), audit.NewRecorder(db)), mock, db
}

func TestAlertService_ListAlerts(t *testing.T) {
	service, mock, db := newAlertService(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, type, message, read").
		WithArgs(int64(7), 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "message", "read", "created_at"}).
			AddRow(2, 7, "large_tx", "Large deposit of $1500.00 to account 1000000001", false, time.Now()).
			AddRow(1, 7, "low_balance", "Low balance alert: Account 1000000001 has $90.00", true, time.Now()))

	w := httptest.NewRecorder()
	service.ListAlerts(w, authedRequest("GET", "/alerts", nil, 7))

	assert.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)
	assert.Equal(t, "large_tx", list[0]["type"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertService_MarkRead(t *testing.T) {
	service, mock, db := newAlertService(t)
	defer db.Close()

	router := chi.NewRouter()
	router.Post("/alerts/{alertId}/read", service.MarkRead)

	t.Run("marks alert read", func(t *testing.T) {
		mock.ExpectQuery("UPDATE alerts").
			WithArgs(int64(2), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "message", "read", "created_at"}).
				AddRow(2, 7, "large_tx", "Large deposit of $1500.00 to account 1000000001", true, time.Now()))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/alerts/2/read", nil, 7))

		assert.Equal(t, http.StatusOK, w.Code)
		var alert map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &alert))
		assert.Equal(t, true, alert["read"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("foreign alert is not found", func(t *testing.T) {
		mock.ExpectQuery("UPDATE alerts").
			WithArgs(int64(5), int64(7)).
			WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/alerts/5/read", nil, 7))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAlertService_UpdatePrefs(t *testing.T) {
	service, mock, db := newAlertService(t)
	defer db.Close()

	t.Run("merges patch fields and audits the change", func(t *testing.T) {
		mock.ExpectQuery("FROM alert_prefs").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "low_balance", "low_balance_threshold", "large_tx", "large_tx_threshold", "card_change", "email_enabled"}).
				AddRow(1, 7, true, "100.00", true, "1000.00", true, true))
		mock.ExpectExec("UPDATE alert_prefs").
			WithArgs(true, "250.00", true, "1000.00", true, true, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO audit_log").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		service.UpdatePrefs(w, authedRequest("PATCH", "/alerts/preferences", []byte(`{"low_balance_threshold":250}`), 7))

		assert.Equal(t, http.StatusOK, w.Code)
		var prefs map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &prefs))
		assert.Equal(t, "250", prefs["low_balance_threshold"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative threshold rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.UpdatePrefs(w, authedRequest("PATCH", "/alerts/preferences", []byte(`{"large_tx_threshold":-5}`), 7))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty patch leaves the row untouched", func(t *testing.T) {
		mock.ExpectQuery("FROM alert_prefs").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "low_balance", "low_balance_threshold", "large_tx", "large_tx_threshold", "card_change", "email_enabled"}).
				AddRow(1, 7, true, "100.00", true, "1000.00", true, true))

		w := httptest.NewRecorder()
		service.UpdatePrefs(w, authedRequest("PATCH", "/alerts/preferences", []byte(`{}`), 7))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

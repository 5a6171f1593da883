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

func newCardService(t *testing.T) (*CardService, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	return NewCardService(db, alerts.NewPrefsStore(db), alerts.NewStore(db), audit.NewRecorder(db)), mock, db
}

func cardRows(id, userID int64, frozen bool, perTx, daily string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "last4", "brand", "is_frozen", "per_tx_limit", "daily_limit", "expires", "created_at"}).
		AddRow(id, userID, "1234", "Visa", frozen, perTx, daily, time.Now().AddDate(3, 0, 0), time.Now())
}

func TestCardService_ListCards(t *testing.T) {
	service, mock, db := newCardService(t)
	defer db.Close()

	t.Run("creates the default card on first access", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, last4").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "last4", "brand", "is_frozen", "per_tx_limit", "daily_limit", "expires", "created_at"}))
		mock.ExpectQuery("INSERT INTO cards").
			WillReturnRows(cardRows(1, 7, false, "5000.00", "10000.00"))

		w := httptest.NewRecorder()
		service.ListCards(w, authedRequest("GET", "/cards", nil, 7))

		assert.Equal(t, http.StatusOK, w.Code)
		var cards []map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &cards))
		assert.Len(t, cards, 1)
		assert.Equal(t, "Visa", cards[0]["brand"])
		assert.Equal(t, "5000", cards[0]["per_tx_limit"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing cards returned as is", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, last4").
			WithArgs(int64(7)).
			WillReturnRows(cardRows(1, 7, true, "2500.00", "10000.00"))

		w := httptest.NewRecorder()
		service.ListCards(w, authedRequest("GET", "/cards", nil, 7))

		assert.Equal(t, http.StatusOK, w.Code)
		var cards []map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &cards))
		assert.Len(t, cards, 1)
		assert.Equal(t, true, cards[0]["is_frozen"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCardService_UpdateCard(t *testing.T) {
	service, mock, db := newCardService(t)
	defer db.Close()

	router := chi.NewRouter()
	router.Patch("/cards/{cardId}", service.UpdateCard)

	t.Run("freezing the card raises a card_change alert", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, last4").
			WithArgs(int64(1), int64(7)).
			WillReturnRows(cardRows(1, 7, false, "5000.00", "10000.00"))
		mock.ExpectExec("UPDATE cards").
			WithArgs(true, "5000.00", "10000.00", int64(1), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM alert_prefs").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "low_balance", "low_balance_threshold", "large_tx", "large_tx_threshold", "card_change", "email_enabled"}).
				AddRow(1, 7, true, "100.00", true, "1000.00", true, true))
		mock.ExpectQuery("INSERT INTO alerts").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		mock.ExpectExec("INSERT INTO audit_log").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		req := authedRequest("PATCH", "/cards/1", []byte(`{"is_frozen":true}`), 7)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var card map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
		assert.Equal(t, true, card["is_frozen"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no-op update skips alert and audit", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, last4").
			WithArgs(int64(1), int64(7)).
			WillReturnRows(cardRows(1, 7, false, "5000.00", "10000.00"))

		w := httptest.NewRecorder()
		req := authedRequest("PATCH", "/cards/1", []byte(`{"is_frozen":false}`), 7)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("limit out of range", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := authedRequest("PATCH", "/cards/1", []byte(`{"per_tx_limit":999999}`), 7)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("card not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, last4").
			WithArgs(int64(9), int64(7)).
			WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		req := authedRequest("PATCH", "/cards/9", []byte(`{"is_frozen":true}`), 7)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

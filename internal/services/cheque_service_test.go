package services

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/evertrust/banking/internal/audit"
	"github.com/evertrust/banking/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func newChequeService(t *testing.T) (*ChequeService, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	return NewChequeService(db, audit.NewRecorder(db)), mock, db
}

func TestChequeService_RequestCheque(t *testing.T) {
	service, mock, db := newChequeService(t)
	defer db.Close()

	t.Run("creates a request with the default leaf count", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM accounts").
			WithArgs(int64(1), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM cheques").
			WithArgs(int64(7), int64(1), models.ChequeRequested).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("INSERT INTO cheques").
			WithArgs(int64(7), int64(1), models.ChequeRequested, 25).
			WillReturnRows(sqlmock.NewRows([]string{"id", "requested_at"}).AddRow(3, time.Now()))
		mock.ExpectExec("INSERT INTO audit_log").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		service.RequestCheque(w, authedRequest("POST", "/cheques/request", []byte(`{"account_id":1}`), 7))

		assert.Equal(t, http.StatusCreated, w.Code)
		var c models.Cheque
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
		assert.Equal(t, models.ChequeRequested, c.Status)
		assert.Equal(t, 25, c.Leaves)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a second open request for the account is rejected", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM accounts").
			WithArgs(int64(1), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM cheques").
			WithArgs(int64(7), int64(1), models.ChequeRequested).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		w := httptest.NewRecorder()
		service.RequestCheque(w, authedRequest("POST", "/cheques/request", []byte(`{"account_id":1}`), 7))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("an account the caller does not own is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM accounts").
			WithArgs(int64(9), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		w := httptest.NewRecorder()
		service.RequestCheque(w, authedRequest("POST", "/cheques/request", []byte(`{"account_id":9}`), 7))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("an unsupported leaf count fails validation", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.RequestCheque(w, authedRequest("POST", "/cheques/request", []byte(`{"account_id":1,"leaves":30}`), 7))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChequeService_CancelCheque(t *testing.T) {
	service, mock, db := newChequeService(t)
	defer db.Close()

	router := chi.NewRouter()
	router.Post("/cheques/{chequeId}/cancel", service.CancelCheque)

	chequeRow := func(status models.ChequeStatus) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "user_id", "account_id", "request_status", "leaves", "requested_at", "canceled_at"}).
			AddRow(3, 7, 1, status, 25, time.Now(), nil)
	}

	t.Run("cancels a requested cheque", func(t *testing.T) {
		mock.ExpectQuery("FROM cheques").
			WithArgs(int64(3), int64(7)).
			WillReturnRows(chequeRow(models.ChequeRequested))
		mock.ExpectQuery("UPDATE cheques").
			WithArgs(models.ChequeCanceled, int64(3), int64(7), models.ChequeRequested).
			WillReturnRows(sqlmock.NewRows([]string{"canceled_at"}).AddRow(time.Now()))
		mock.ExpectExec("INSERT INTO audit_log").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/cheques/3/cancel", nil, 7))

		assert.Equal(t, http.StatusOK, w.Code)
		var c models.Cheque
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
		assert.Equal(t, models.ChequeCanceled, c.Status)
		assert.NotNil(t, c.CanceledAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a shipped cheque cannot be canceled", func(t *testing.T) {
		mock.ExpectQuery("FROM cheques").
			WithArgs(int64(3), int64(7)).
			WillReturnRows(chequeRow(models.ChequeShipped))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/cheques/3/cancel", nil, 7))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("another user's cheque is not found", func(t *testing.T) {
		mock.ExpectQuery("FROM cheques").
			WithArgs(int64(3), int64(99)).
			WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/cheques/3/cancel", nil, 99))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestChequeService_ListCheques(t *testing.T) {
	service, mock, db := newChequeService(t)
	defer db.Close()

	mock.ExpectQuery("FROM cheques").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "account_id", "request_status", "leaves", "requested_at", "canceled_at"}).
			AddRow(4, 7, 1, models.ChequeRequested, 50, time.Now(), nil).
			AddRow(3, 7, 1, models.ChequeCanceled, 25, time.Now().Add(-time.Hour), time.Now()))

	w := httptest.NewRecorder()
	service.ListCheques(w, authedRequest("GET", "/cheques", nil, 7))

	assert.Equal(t, http.StatusOK, w.Code)
	var cheques []models.Cheque
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &cheques))
	assert.Len(t, cheques, 2)
	assert.Equal(t, models.ChequeRequested, cheques[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func init() {
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 1)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 8*1024)
	viper.Set("argon2.threads", 1)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("hunter22")
	assert.NoError(t, err)
	assert.NotContains(t, hash, "hunter22")

	assert.True(t, verifyPassword("hunter22", hash))
	assert.False(t, verifyPassword("hunter23", hash))
	assert.False(t, verifyPassword("hunter22", "not-a-hash"))
}

func TestAuthService_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil, nil)

	t.Run("creates user and default checking account", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, time.Now()))
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body := []byte(`{"name":"Jane Doe","email":"Jane@Example.com","password":"hunter22"}`)
		w := httptest.NewRecorder()
		service.Register(w, httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body)))

		assert.Equal(t, http.StatusCreated, w.Code)
		var res AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, int64(7), res.User.ID)
		// Emails are stored lowercased.
		assert.Equal(t, "jane@example.com", res.User.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validation failure reports field details", func(t *testing.T) {
		body := []byte(`{"name":"J","email":"not-an-email","password":"x"}`)
		w := httptest.NewRecorder()
		service.Register(w, httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var res ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "Validation failed", res.Error)
		assert.Contains(t, res.Details, "Email")
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		body := []byte(`{"name":"Jane Doe","email":"jane@example.com","password":"hunter22"}`)
		w := httptest.NewRecorder()
		service.Register(w, httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body)))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil, nil)

	t.Run("valid credentials", func(t *testing.T) {
		hash, err := hashPassword("hunter22")
		assert.NoError(t, err)

		mock.ExpectQuery("SELECT id, name, email, password_hash").
			WithArgs("jane@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "phone", "address", "created_at"}).
				AddRow(7, "Jane Doe", "jane@example.com", hash, "", "", time.Now()))

		body := []byte(`{"email":"jane@example.com","password":"hunter22"}`)
		w := httptest.NewRecorder()
		service.Login(w, httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		var res AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.NotEmpty(t, res.Token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		hash, err := hashPassword("hunter22")
		assert.NoError(t, err)

		mock.ExpectQuery("SELECT id, name, email, password_hash").
			WithArgs("jane@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "phone", "address", "created_at"}).
				AddRow(7, "Jane Doe", "jane@example.com", hash, "", "", time.Now()))

		body := []byte(`{"email":"jane@example.com","password":"wrong-pass"}`)
		w := httptest.NewRecorder()
		service.Login(w, httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown email", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, email, password_hash").
			WithArgs("ghost@example.com").
			WillReturnError(assert.AnError)

		body := []byte(`{"email":"ghost@example.com","password":"hunter22"}`)
		w := httptest.NewRecorder()
		service.Login(w, httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

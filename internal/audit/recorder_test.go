package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	recorder := NewRecorder(db)
	ctx := context.Background()

	t.Run("writes action and tagged metadata", func(t *testing.T) {
		payload := WithdrawalCreated{AccountID: 1, AccountNumber: "1000000001", Amount: "60.00"}
		metadata, _ := json.Marshal(payload)

		mock.ExpectExec("INSERT INTO audit_log").
			WithArgs(int64(7), "withdrawal_created", "transaction", int64(20), metadata, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		recorder.Record(ctx, 7, "transaction", 20, payload)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a failed write is swallowed", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO audit_log").
			WillReturnError(errors.New("disk full"))

		// Must not panic or surface the error to the caller.
		recorder.Record(ctx, 7, "transaction", 21, DepositCreated{AccountID: 1, Amount: "10.00"})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecorder_EventsByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	recorder := NewRecorder(db)

	mock.ExpectQuery("SELECT id, user_id, action, entity, entity_id, metadata, created_at").
		WithArgs(int64(7), 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "entity", "entity_id", "metadata", "created_at"}).
			AddRow(2, 7, "bill_paid", "bill", 6, []byte(`{"biller":"City Power","account_id":1,"amount":"120.00"}`), time.Now()).
			AddRow(1, 7, "user_registered", "user", 7, []byte(`{"email":"a@b.c","account_number":"1000000001"}`), time.Now()))

	entries, err := recorder.EventsByUser(context.Background(), 7, 50, 0)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "bill_paid", entries[0].Action)
	assert.Equal(t, int64(6), entries[0].EntityID)
	assert.JSONEq(t, `{"biller":"City Power","account_id":1,"amount":"120.00"}`, string(entries[0].Metadata))
	assert.NoError(t, mock.ExpectationsWereMet())
}

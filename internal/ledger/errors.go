package ledger

import (
	"errors"

	"github.com/lib/pq"
)

// Terminal operation failures, distinguishable with errors.Is by the
// HTTP layer. ErrConflict is the only retryable one: it is returned
// when a row lock could not be acquired within the lock timeout or an
// optimistic write lost a race, and guarantees no partial state.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrBillerNotFound    = errors.New("biller not found")
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
	ErrInvalidAmount     = errors.New("amount must be positive with at most two decimal places")
	ErrConflict          = errors.New("operation conflicted with a concurrent update, retry")
)

// Postgres error codes that mean "lost a race", not "bad request".
const (
	pqLockNotAvailable     = "55P03"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

func mapConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqLockNotAvailable, pqSerializationFailure, pqDeadlockDetected:
			return ErrConflict
		}
	}
	return err
}

package queue

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// -- Validation & Input --
	ErrInvalidPreparationType = errors.New("invalid preparation type")
	ErrNothingToPrepare       = errors.New("order has no items for this preparation type")

	// -- Resource State --
	ErrEntryNotFound     = errors.New("queue entry not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid queue status transition")
	ErrQueueFull         = errors.New("every queue number is held by an active entry")

	// -- Database & Operation Failures --
	ErrStoreUnavailable    = errors.New("queue store unavailable")
	ErrQueueNumberConflict = errors.New("queue number assignment conflict")

	// -- Constants (External Systems) --
	PgUniqueViolation      = "23505"
	PgSerializationFailure = "40001"
	PgDeadlockDetected     = "40P01"
)

// isConflict reports whether err is a Postgres error that a retried
// transaction can resolve, for either supported driver.
func isConflict(err error) bool {
	var code string

	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	case errors.As(err, &pgErr):
		code = pgErr.Code
	default:
		return false
	}

	return code == PgUniqueViolation || code == PgSerializationFailure || code == PgDeadlockDetected
}

package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// transientCodes are SQLSTATEs whose transaction is safe to retry as a whole.
var transientCodes = map[string]struct{}{
	pgerrcode.DeadlockDetected:     {},
	pgerrcode.SerializationFailure: {},
	pgerrcode.LockNotAvailable:     {},
	pgerrcode.QueryCanceled:        {},
	pgerrcode.ConnectionException:  {},
	pgerrcode.ConnectionFailure:    {},
	pgerrcode.TooManyConnections:   {},
	pgerrcode.AdminShutdown:        {},
	pgerrcode.CannotConnectNow:     {},
}

// IsUniqueViolation reports whether err is a unique-constraint violation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsTransient reports whether err is a storage failure worth retrying once.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := transientCodes[pgErr.Code]
		return ok
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, true},
		{"wrapped postgres unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation}), true},
		{"postgres fk", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, false},
		{"sqlite unique", errors.New("UNIQUE constraint failed: post_reactions.post_id, post_reactions.member_id"), true},
		{"other", errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadlock", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, true},
		{"serialization", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"lock not available", fmt.Errorf("lock: %w", &pgconn.PgError{Code: pgerrcode.LockNotAvailable}), true},
		{"unique is not transient", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"bad conn", driver.ErrBadConn, true},
		{"sqlite locked", errors.New("database is locked"), true},
		{"sqlite busy", errors.New("SQLITE_BUSY: cannot commit"), true},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), false},
		{"plain", errors.New("record not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

package database

import (
	"context"
	"log/slog"
	"time"

	"rebound/internal/middleware"
	"rebound/internal/models"
	"rebound/internal/observability"

	"gorm.io/gorm"
)

// RetryBackoff is the pause before the single retry of a transient failure.
var RetryBackoff = 25 * time.Millisecond

// WithRetry runs fn and retries it once when it fails with a transient storage
// error. A second transient failure is reported as a TRANSIENT_STORAGE_FAILURE
// AppError; any other error is returned unchanged.
func WithRetry(ctx context.Context, operation string, fn func() error) error {
	err := fn()
	if err == nil || !IsTransient(err) {
		return err
	}

	observability.StorageRetries.WithLabelValues(operation).Inc()
	middleware.Logger.WarnContext(ctx, "retrying after transient storage failure",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)

	select {
	case <-ctx.Done():
		return models.NewTransientError(err)
	case <-time.After(RetryBackoff):
	}

	err = fn()
	if err != nil && IsTransient(err) {
		return models.NewTransientError(err)
	}
	return err
}

// RunInTx runs fn inside one database transaction, retrying the whole
// transaction once on a transient failure.
func RunInTx(ctx context.Context, db *gorm.DB, operation string, fn func(tx *gorm.DB) error) error {
	return WithRetry(ctx, operation, func() error {
		return db.WithContext(ctx).Transaction(fn)
	})
}

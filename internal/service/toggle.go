// Package service holds the interaction and comment business rules.
package service

import (
	"context"
	"errors"

	"rebound/internal/database"
	"rebound/internal/models"
	"rebound/internal/observability"
	"rebound/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// TxRunner runs fn inside one database transaction. The operation name labels
// retries in metrics.
type TxRunner func(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error

// NewTxRunner returns a TxRunner that retries a transaction once on transient failure.
func NewTxRunner(db *gorm.DB) TxRunner {
	return func(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
		return database.RunInTx(ctx, db, operation, fn)
	}
}

// ToggleResult is the state of one ledger key after a toggle or set.
// Count is recounted from the ledger, never adjusted locally.
type ToggleResult struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// ToggleEngine flips ledger rows. Unique constraints in storage are the only
// serialization point; a lost insert race counts as success.
type ToggleEngine struct {
	runTx TxRunner
}

func NewToggleEngine(runTx TxRunner) *ToggleEngine {
	return &ToggleEngine{runTx: runTx}
}

// Toggle removes the row when it exists and inserts it otherwise.
func (e *ToggleEngine) Toggle(ctx context.Context, ledger repository.Ledger, key repository.LedgerKey) (result ToggleResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ToggleEngine", "Toggle",
		attribute.String("ledger", ledger.Kind()),
		attribute.Int64("subject_id", int64(key.SubjectID)),
	)
	defer span.End(&err)

	err = e.runTx(ctx, "toggle_"+ledger.Kind(), func(tx *gorm.DB) error {
		var txErr error
		result, txErr = toggleLedger(ctx, ledger.WithTx(tx), key)
		return txErr
	})
	if err != nil {
		return ToggleResult{}, storageError(err)
	}
	return result, nil
}

// Set makes the row present (active) or absent. Repeating a call is harmless.
func (e *ToggleEngine) Set(ctx context.Context, ledger repository.Ledger, key repository.LedgerKey, active bool) (result ToggleResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ToggleEngine", "Set",
		attribute.String("ledger", ledger.Kind()),
		attribute.Bool("active", active),
	)
	defer span.End(&err)

	err = e.runTx(ctx, "set_"+ledger.Kind(), func(tx *gorm.DB) error {
		var txErr error
		result, txErr = setLedger(ctx, ledger.WithTx(tx), key, active)
		return txErr
	})
	if err != nil {
		return ToggleResult{}, storageError(err)
	}
	return result, nil
}

// toggleLedger runs the toggle against a ledger already bound to a transaction.
func toggleLedger(ctx context.Context, ledger repository.Ledger, key repository.LedgerKey) (ToggleResult, error) {
	exists, err := ledger.Exists(ctx, key)
	if err != nil {
		return ToggleResult{}, err
	}
	return setLedger(ctx, ledger, key, !exists)
}

func setLedger(ctx context.Context, ledger repository.Ledger, key repository.LedgerKey, active bool) (ToggleResult, error) {
	if active {
		outcome, err := ledger.Insert(ctx, key)
		if err != nil {
			return ToggleResult{}, err
		}
		if outcome == repository.AlreadyPresent {
			observability.ToggleRaceResolved.WithLabelValues(ledger.Kind()).Inc()
		}
	} else {
		if _, err := ledger.Delete(ctx, key); err != nil {
			return ToggleResult{}, err
		}
	}

	count, err := ledger.Count(ctx, key.SubjectID, key.Type)
	if err != nil {
		return ToggleResult{}, err
	}

	state := "off"
	if active {
		state = "on"
	}
	observability.ToggleTotal.WithLabelValues(ledger.Kind(), state).Inc()

	return ToggleResult{Active: active, Count: count}, nil
}

// storageError passes AppErrors through and reports any other persistence
// failure as retryable.
func storageError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewTransientError(err)
}

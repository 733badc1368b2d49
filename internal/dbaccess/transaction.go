package dbaccess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Transactor wraps work in a transaction on a borrowed handle.
type Transactor struct {
	logger Logger
}

// NewTransactor creates a Transactor.
func NewTransactor(logger Logger) *Transactor {
	return &Transactor{logger: orNoop(logger)}
}

// Run begins a transaction on h and calls work with it.
//
// Exactly one of commit or rollback happens per call:
//   - work returns nil: commit. A failed commit returns ErrQuery and marks
//     h aborted so its session is discarded on release.
//   - work returns an error: rollback, then the original error is returned.
//     A rollback failure is logged, never returned.
//   - work panics: rollback, then the panic continues.
//
// Failing to begin wraps ErrConnection.
func (t *Transactor) Run(ctx context.Context, h *Handle, work func(ctx context.Context, q Querier) error) error {
	if h.Released() {
		return ErrHandleReleased
	}

	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrConnection, err)
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		if r := recover(); r != nil {
			t.rollback(tx)
			panic(r)
		}
	}()

	if err := work(ctx, tx); err != nil {
		finished = true
		t.rollback(tx)
		return err
	}

	finished = true
	if err := tx.Commit(); err != nil {
		h.abort()
		return fmt.Errorf("%w: committing transaction: %w", ErrQuery, err)
	}
	return nil
}

// rollback aborts tx and logs any failure other than an already-finished transaction.
func (t *Transactor) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		t.logger.Error("rollback failed", "error", err)
	}
}

package dbaccess

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync/atomic"
)

// Connector hands out exclusive connections. *sql.DB satisfies it.
type Connector interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Querier runs statements. Both *Handle and *sql.Tx implement it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Handle is one exclusive connection borrowed from a Connector.
//
// A Handle must not be used after Release. A handle whose commit failed is
// marked aborted and is discarded on release rather than returned to the pool.
type Handle struct {
	conn     *sql.Conn
	released atomic.Bool
	aborted  atomic.Bool
}

// ExecContext executes a statement on the handle's connection.
func (h *Handle) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if h.released.Load() {
		return nil, errReleased
	}
	return h.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the handle's connection.
func (h *Handle) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if h.released.Load() {
		return nil, errReleased
	}
	return h.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query. A *sql.Row cannot carry
// ErrHandleReleased, so after Release its Scan reports sql.ErrConnDone, the
// error ExecContext and QueryContext also wrap. The Layer's classification
// turns it into ErrHandleReleased.
func (h *Handle) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return h.conn.QueryRowContext(ctx, query, args...)
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h.released.Load()
}

// abort marks the session as unusable so Release discards it.
func (h *Handle) abort() {
	h.aborted.Store(true)
}

// Release returns the connection to its pool. It is safe to call more than
// once; only the first call has an effect.
func (h *Handle) Release() error {
	if !h.released.CompareAndSwap(false, true) {
		return nil
	}

	if h.aborted.Load() {
		// Returning ErrBadConn from Raw makes database/sql close the
		// driver connection instead of pooling it.
		_ = h.conn.Raw(func(any) error { return driver.ErrBadConn }) //nolint:errcheck // Always ErrBadConn
	}

	if err := h.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("releasing connection: %w", err)
	}
	return nil
}

// Scope acquires handles and guarantees their release.
type Scope struct {
	connector Connector
	logger    Logger
}

// NewScope creates a Scope drawing connections from connector.
func NewScope(connector Connector, logger Logger) *Scope {
	return &Scope{
		connector: connector,
		logger:    orNoop(logger),
	}
}

// Acquire borrows one exclusive connection. Failures wrap ErrConnection and
// are not retried here; compose a RetryPolicy outside the scope for that.
func (s *Scope) Acquire(ctx context.Context) (*Handle, error) {
	conn, err := s.connector.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return &Handle{conn: conn}, nil
}

// Run acquires a handle, calls fn with it and releases it on every exit
// path, panics included. Any commit or rollback performed inside fn has
// already happened when the handle is released.
//
// A release failure is returned only when fn succeeded; otherwise it is
// logged and fn's error is returned.
func (s *Scope) Run(ctx context.Context, fn func(ctx context.Context, h *Handle) error) (err error) {
	h, err := s.Acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		relErr := h.Release()
		if relErr == nil {
			return
		}
		if err == nil {
			err = relErr
			return
		}
		s.logger.Warn("release failed after operation error",
			"error", relErr,
			"operation_error", err,
		)
	}()

	return fn(ctx, h)
}

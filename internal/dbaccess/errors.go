package dbaccess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Access layer errors.
//
// Driver failures are wrapped so that both the class and the cause match:
//
//	if errors.Is(err, dbaccess.ErrTransientQuery) {
//	    // store was busy; safe to try again later
//	}
var (
	// ErrConnection is returned when a connection or transaction cannot be established.
	ErrConnection = errors.New("dbaccess: connection failed")

	// ErrTransientQuery is returned when the store reports a retryable failure (busy, locked, deadlock).
	ErrTransientQuery = errors.New("dbaccess: transient query failure")

	// ErrValidation is returned when a caller-supplied argument violates a precondition.
	// It is never retried.
	ErrValidation = errors.New("dbaccess: invalid argument")

	// ErrQuery is returned when a statement executed but failed, or a commit failed.
	ErrQuery = errors.New("dbaccess: query failed")

	// ErrNoData is returned by aggregations over an empty stream.
	ErrNoData = errors.New("dbaccess: no data")

	// ErrNoRows is returned by QueryRow when the result set is empty.
	ErrNoRows = errors.New("dbaccess: no rows")

	// ErrHandleReleased is returned when a Handle is used after Release.
	// It always accompanies sql.ErrConnDone.
	ErrHandleReleased = errors.New("dbaccess: handle released")
)

// errReleased is what a released Handle's methods report.
var errReleased = fmt.Errorf("%w: %w", ErrHandleReleased, sql.ErrConnDone)

// classified reports whether err already carries one of the package sentinels.
func classified(err error) bool {
	for _, sentinel := range []error{
		ErrConnection, ErrTransientQuery, ErrValidation,
		ErrQuery, ErrNoData, ErrNoRows, ErrHandleReleased,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// classify tags a raw driver error with ErrTransientQuery or ErrQuery.
// Context errors and errors that are already classified pass through.
// sql.ErrConnDone can only come from a released Handle, typically through
// the *sql.Row of QueryRowContext, and becomes ErrHandleReleased.
func classify(err error, isTransient func(error) bool) error {
	switch {
	case err == nil:
		return nil
	case classified(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %w", ErrHandleReleased, err)
	case isTransient != nil && isTransient(err):
		return fmt.Errorf("%w: %w", ErrTransientQuery, err)
	default:
		return fmt.Errorf("%w: %w", ErrQuery, err)
	}
}

// invalid builds an ErrValidation error with a formatted detail.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

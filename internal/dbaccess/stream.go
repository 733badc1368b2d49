package dbaccess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"iter"
)

// Producer is a lazy, finite, forward-only sequence.
//
// Next returns the next unit, or io.EOF once the sequence is exhausted.
// Any other error ends the sequence. Close releases the underlying
// resources; it is idempotent and safe to call after io.EOF.
//
// Producers are not safe for concurrent use.
type Producer[T any] interface {
	Next(ctx context.Context) (T, error)
	Close() error
}

// All adapts p to a range-over-func iterator. The producer is closed when
// the loop ends, whether by exhaustion, error or break.
//
//	for row, err := range dbaccess.All(ctx, stream) {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
func All[T any](ctx context.Context, p Producer[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer p.Close() //nolint:errcheck // Close errors surface through Next

		for {
			v, err := p.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(v, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Collect drains p into a slice and closes it.
// It gives up the memory bound, so it is meant for small results and tests.
func Collect[T any](ctx context.Context, p Producer[T]) ([]T, error) {
	var out []T
	for v, err := range All(ctx, p) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// RowStream yields one row per Next from a single open cursor.
//
// The stream owns its handle for its whole life and releases it at the end
// of data, on the first error or on Close, whichever comes first. It is
// single pass: to read again, open a new stream.
type RowStream struct {
	handle   *Handle
	rows     *sql.Rows
	cols     []string
	classify func(error) error
	closed   bool
}

// openRowStream runs query on h and wraps the cursor. On failure h is released.
func openRowStream(ctx context.Context, h *Handle, classify func(error) error, query string, args ...any) (*RowStream, error) {
	rows, err := h.QueryContext(ctx, query, args...)
	if err != nil {
		h.Release() //nolint:errcheck // Query error takes precedence
		return nil, classify(err)
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close() //nolint:errcheck // Columns error takes precedence
		h.Release()  //nolint:errcheck // Columns error takes precedence
		return nil, classify(fmt.Errorf("reading columns: %w", err))
	}

	return &RowStream{
		handle:   h,
		rows:     rows,
		cols:     cols,
		classify: classify,
	}, nil
}

// Columns returns the column names of the result set.
func (s *RowStream) Columns() []string {
	out := make([]string, len(s.cols))
	copy(out, s.cols)
	return out
}

// Next returns the next row or io.EOF.
func (s *RowStream) Next(ctx context.Context) (Row, error) {
	if s.closed {
		return Row{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return Row{}, errors.Join(err, s.Close())
	}

	if !s.rows.Next() {
		iterErr := s.rows.Err()
		closeErr := s.Close()
		if iterErr != nil {
			return Row{}, errors.Join(s.classify(fmt.Errorf("iterating rows: %w", iterErr)), closeErr)
		}
		if closeErr != nil {
			return Row{}, closeErr
		}
		return Row{}, io.EOF
	}

	row, err := scanRow(s.rows, s.cols)
	if err != nil {
		return Row{}, errors.Join(s.classify(err), s.Close())
	}
	return row, nil
}

// Close closes the cursor and releases the handle.
func (s *RowStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	rowsErr := s.rows.Close()
	if rowsErr != nil {
		rowsErr = fmt.Errorf("closing rows: %w", rowsErr)
	}
	return errors.Join(rowsErr, s.handle.Release())
}

package dbaccess

import (
	"context"
	"errors"
	"io"
)

// Average returns the mean of column over every row p yields.
//
// The stream is consumed exactly once with a running sum and count, so
// memory stays constant regardless of the row count. p is closed before
// Average returns. An empty stream yields ErrNoData.
func Average(ctx context.Context, p Producer[Row], column string) (avg float64, err error) {
	defer func() {
		if closeErr := p.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var (
		sum   float64
		count int64
	)
	for {
		row, err := p.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}

		v, err := row.Float64(column)
		if err != nil {
			return 0, err
		}
		sum += v
		count++
	}

	if count == 0 {
		return 0, ErrNoData
	}
	return sum / float64(count), nil
}

// Filter flattens a batch producer into the rows for which keep returns
// true. At most one batch is held at a time. Closing the result closes src.
func Filter(src Producer[[]Row], keep func(Row) bool) Producer[Row] {
	return &filterProducer{src: src, keep: keep}
}

// filterProducer implements Filter.
type filterProducer struct {
	src     Producer[[]Row]
	keep    func(Row) bool
	pending []Row
}

func (f *filterProducer) Next(ctx context.Context) (Row, error) {
	for {
		for len(f.pending) > 0 {
			row := f.pending[0]
			f.pending = f.pending[1:]
			if f.keep(row) {
				return row, nil
			}
		}

		batch, err := f.src.Next(ctx)
		if err != nil {
			f.pending = nil
			return Row{}, err
		}
		f.pending = batch
	}
}

func (f *filterProducer) Close() error {
	f.pending = nil
	return f.src.Close()
}

// Map converts each unit of src with fn. An fn error ends the sequence.
// Closing the result closes src.
func Map[T, U any](src Producer[T], fn func(T) (U, error)) Producer[U] {
	return &mapProducer[T, U]{src: src, fn: fn}
}

// mapProducer implements Map.
type mapProducer[T, U any] struct {
	src Producer[T]
	fn  func(T) (U, error)
}

func (m *mapProducer[T, U]) Next(ctx context.Context) (U, error) {
	var zero U
	v, err := m.src.Next(ctx)
	if err != nil {
		return zero, err
	}
	return m.fn(v)
}

func (m *mapProducer[T, U]) Close() error {
	return m.src.Close()
}

package dbaccess

import (
	"context"
	"time"
)

// Operation is the uniform shape every access layer step shares.
type Operation[T any] func(ctx context.Context) (T, error)

// Middleware wraps an Operation with one concern.
type Middleware[T any] func(next Operation[T]) Operation[T]

// Chain wraps op with mws. The first middleware is the outermost:
// Chain(op, a, b) runs a, then b, then op.
func Chain[T any](op Operation[T], mws ...Middleware[T]) Operation[T] {
	for i := len(mws) - 1; i >= 0; i-- {
		op = mws[i](op)
	}
	return op
}

// WithRetry re-runs the rest of the chain according to p.
// Place it outside Scoped so every attempt gets a fresh handle.
func WithRetry[T any](p RetryPolicy) Middleware[T] {
	return func(next Operation[T]) Operation[T] {
		return func(ctx context.Context) (T, error) {
			return Retry[T](ctx, p, next)
		}
	}
}

// WithCache serves the rest of the chain from c under key.
func WithCache[T any](c *QueryCache[T], key string) Middleware[T] {
	return func(next Operation[T]) Operation[T] {
		return func(ctx context.Context) (T, error) {
			return c.GetOrCompute(ctx, key, next)
		}
	}
}

// WithQueryLog logs the query text at debug level before each execution.
// Bound values are never logged.
func WithQueryLog[T any](logger Logger, kind, query string) Middleware[T] {
	logger = orNoop(logger)
	return func(next Operation[T]) Operation[T] {
		return func(ctx context.Context) (T, error) {
			logger.Debug("executing query", "kind", kind, "query", query)
			return next(ctx)
		}
	}
}

// Observation describes one completed operation, retries included.
type Observation struct {
	Kind     string
	Query    string
	Duration time.Duration
	Err      error
}

// Observer receives an Observation after each operation.
type Observer func(Observation)

// WithObserver reports each run of the rest of the chain to observe.
func WithObserver[T any](observe Observer, kind, query string) Middleware[T] {
	return func(next Operation[T]) Operation[T] {
		return func(ctx context.Context) (T, error) {
			start := time.Now()
			v, err := next(ctx)
			if observe != nil {
				observe(Observation{
					Kind:     kind,
					Query:    query,
					Duration: time.Since(start),
					Err:      err,
				})
			}
			return v, err
		}
	}
}

// withClassify tags raw driver errors from the rest of the chain.
func withClassify[T any](isTransient func(error) bool) Middleware[T] {
	return func(next Operation[T]) Operation[T] {
		return func(ctx context.Context) (T, error) {
			v, err := next(ctx)
			return v, classify(err, isTransient)
		}
	}
}

// Scoped runs fn with a handle acquired from s and released afterwards.
func Scoped[T any](s *Scope, fn func(ctx context.Context, h *Handle) (T, error)) Operation[T] {
	return func(ctx context.Context) (T, error) {
		var out T
		err := s.Run(ctx, func(ctx context.Context, h *Handle) error {
			v, err := fn(ctx, h)
			out = v
			return err
		})
		return out, err
	}
}

// Transactional runs work inside a transaction on a scoped handle.
// The transaction has finished before the handle is released.
func Transactional[T any](s *Scope, tx *Transactor, work func(ctx context.Context, q Querier) (T, error)) Operation[T] {
	return Scoped(s, func(ctx context.Context, h *Handle) (T, error) {
		var out T
		err := tx.Run(ctx, h, func(ctx context.Context, q Querier) error {
			v, err := work(ctx, q)
			out = v
			return err
		})
		return out, err
	})
}

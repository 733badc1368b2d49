package dbaccess

import (
	"context"
	"io"
	"slices"
	"strings"

	"github.com/VictoriaMetrics/metrics"
)

// Default unit sizes when Options leaves them at zero.
const (
	defaultBatchSize = 50
	defaultPageSize  = 50
)

// Options configures a Layer.
type Options struct {
	// Retry is applied to every operation. The zero value runs once.
	Retry RetryPolicy

	// BatchSize and PageSize are the defaults reported by BatchSize and
	// PageSize. Zero selects 50; negative values are rejected.
	BatchSize int
	PageSize  int

	// Logger receives query text at debug level and retries at warn level.
	Logger Logger

	// Observer, if set, receives every finished operation.
	Observer Observer

	// IsTransient classifies driver errors; matches are wrapped as
	// ErrTransientQuery, everything else as ErrQuery.
	IsTransient func(error) bool

	// Metrics receives the layer's counters. Nil creates a private set.
	Metrics *metrics.Set
}

// Layer is the composition root of the access layer. It owns a Scope, a
// Transactor, a RetryPolicy and a QueryCache for its lifetime.
//
// Chains are assembled in a fixed order:
//
//	reads:        Observer -> Retry -> QueryLog -> Scope -> query
//	cached reads: Cache -> Observer -> Retry -> QueryLog -> Scope -> query
//	writes:       Observer -> Retry -> QueryLog -> Scope -> Transaction -> work
type Layer struct {
	scope       *Scope
	tx          *Transactor
	retry       RetryPolicy
	batchSize   int
	pageSize    int
	logger      Logger
	observer    Observer
	isTransient func(error) bool
	cache       *QueryCache[[]Row]
	metrics     *layerMetrics
}

// New creates a Layer drawing connections from connector.
func New(connector Connector, opts Options) (*Layer, error) {
	if connector == nil {
		return nil, invalid("nil connector")
	}
	if opts.BatchSize < 0 {
		return nil, invalid("batch size must not be negative, got %d", opts.BatchSize)
	}
	if opts.PageSize < 0 {
		return nil, invalid("page size must not be negative, got %d", opts.PageSize)
	}
	if opts.Retry.MaxAttempts < 0 || opts.Retry.Delay < 0 {
		return nil, invalid("retry attempts and delay must not be negative")
	}

	logger := orNoop(opts.Logger)
	m := newLayerMetrics(opts.Metrics)

	l := &Layer{
		scope:       NewScope(connector, logger),
		tx:          NewTransactor(logger),
		batchSize:   opts.BatchSize,
		pageSize:    opts.PageSize,
		logger:      logger,
		observer:    opts.Observer,
		isTransient: opts.IsTransient,
		cache:       NewQueryCache[[]Row]("query", m.set),
		metrics:     m,
	}
	if l.batchSize == 0 {
		l.batchSize = defaultBatchSize
	}
	if l.pageSize == 0 {
		l.pageSize = defaultPageSize
	}

	l.retry = opts.Retry
	onRetry := opts.Retry.OnRetry
	l.retry.OnRetry = func(a RetryAttempt) {
		m.retries.Inc()
		logger.Warn("retrying operation",
			"attempt", a.Number,
			"delay", a.NextDelay,
			"error", a.Err,
		)
		if onRetry != nil {
			onRetry(a)
		}
	}

	return l, nil
}

// BatchSize returns the configured default batch size.
func (l *Layer) BatchSize() int {
	return l.batchSize
}

// PageSize returns the configured default page size.
func (l *Layer) PageSize() int {
	return l.pageSize
}

// Cache returns the layer's query cache, for Clear and statistics.
func (l *Layer) Cache() *QueryCache[[]Row] {
	return l.cache
}

// WritePrometheus writes the layer's metrics in Prometheus text format.
func (l *Layer) WritePrometheus(w io.Writer) {
	l.metrics.write(w)
}

// Query runs query and returns every row.
func (l *Layer) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if isBlank(query) {
		return nil, invalid("empty query")
	}
	return guard(l, "query", query, l.selectAll(query, args))(ctx)
}

// QueryRow runs query and returns its first row, or ErrNoRows.
func (l *Layer) QueryRow(ctx context.Context, query string, args ...any) (Row, error) {
	if isBlank(query) {
		return Row{}, invalid("empty query")
	}

	op := Scoped(l.scope, func(ctx context.Context, h *Handle) (Row, error) {
		rows, err := h.QueryContext(ctx, query, args...)
		if err != nil {
			return Row{}, err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return Row{}, err
		}
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return Row{}, err
			}
			return Row{}, ErrNoRows
		}
		return scanRow(rows, cols)
	})
	return guard(l, "query_row", query, op)(ctx)
}

// QueryCached runs a query that takes no arguments and caches its rows
// under the exact query text. Later calls with the same text are served
// from the cache until Cache().Clear().
func (l *Layer) QueryCached(ctx context.Context, query string) ([]Row, error) {
	if isBlank(query) {
		return nil, invalid("empty query")
	}

	op := Chain(l.selectAll(query, nil),
		WithCache(l.cache, query),
		WithObserver[[]Row](l.observe, "cached_query", query),
		WithRetry[[]Row](l.retry),
		WithQueryLog[[]Row](l.logger, "cached_query", query),
		withClassify[[]Row](l.isTransient),
	)
	rows, err := op(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rows), nil
}

// Exec runs a statement in its own transaction and returns the number of
// affected rows.
func (l *Layer) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if isBlank(query) {
		return 0, invalid("empty statement")
	}

	op := Transactional(l.scope, l.tx, func(ctx context.Context, q Querier) (int64, error) {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	return guard(l, "exec", query, op)(ctx)
}

// InTx runs work in a transaction: committed if work returns nil, rolled
// back otherwise. With retries configured, work may run more than once and
// must be safe to repeat.
func (l *Layer) InTx(ctx context.Context, work func(ctx context.Context, q Querier) error) error {
	op := Transactional(l.scope, l.tx, func(ctx context.Context, q Querier) (struct{}, error) {
		return struct{}{}, work(ctx, q)
	})
	_, err := guard(l, "tx", "", op)(ctx)
	return err
}

// StreamRows opens a row stream over query. The stream holds one handle
// until it is exhausted or closed; the caller must Close it.
//
// Opening is retried; once rows flow, failures end the stream.
func (l *Layer) StreamRows(ctx context.Context, query string, args ...any) (*RowStream, error) {
	if isBlank(query) {
		return nil, invalid("empty query")
	}

	open := Operation[*RowStream](func(ctx context.Context) (*RowStream, error) {
		h, err := l.scope.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return openRowStream(ctx, h, l.classify, query, args...)
	})
	return guard(l, "stream", query, open)(ctx)
}

// StreamBatches opens a batch stream yielding up to size rows per batch.
// A size below 1 fails with ErrValidation before the store is touched.
func (l *Layer) StreamBatches(ctx context.Context, size int, query string, args ...any) (*BatchStream, error) {
	if size <= 0 {
		return nil, invalid("batch size must be positive, got %d", size)
	}

	rows, err := l.StreamRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return newBatchStream(rows, size), nil
}

// Pages returns a PageSource over query. No query runs until the first
// Next or Fetch; every page runs on its own scoped, retried handle.
// query must not carry its own LIMIT or OFFSET.
func (l *Layer) Pages(query string, size int, args ...any) (*PageSource, error) {
	fetch := func(ctx context.Context, pageQuery string, pageArgs []any) ([]Row, error) {
		return guard(l, "page", pageQuery, l.selectAll(pageQuery, pageArgs))(ctx)
	}
	return newPageSource(query, size, args, fetch)
}

// QueryAll runs every statement concurrently, each on its own handle, and
// returns the row sets in statement order. The first failure cancels the
// rest.
func (l *Layer) QueryAll(ctx context.Context, stmts ...Statement) ([][]Row, error) {
	fetches := make([]Fetch[[]Row], len(stmts))
	for i, st := range stmts {
		if isBlank(st.Query) {
			return nil, invalid("statement %d has an empty query", i)
		}
		fetches[i] = func(ctx context.Context) ([]Row, error) {
			return l.Query(ctx, st.Query, st.Args...)
		}
	}
	return FetchAll(ctx, fetches...)
}

// guard wraps op in the layer's standard chain.
func guard[T any](l *Layer, kind, query string, op Operation[T]) Operation[T] {
	return Chain(op,
		WithObserver[T](l.observe, kind, query),
		WithRetry[T](l.retry),
		WithQueryLog[T](l.logger, kind, query),
		withClassify[T](l.isTransient),
	)
}

// selectAll returns a scoped operation reading every row of query.
func (l *Layer) selectAll(query string, args []any) Operation[[]Row] {
	return Scoped(l.scope, func(ctx context.Context, h *Handle) ([]Row, error) {
		rows, err := h.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		return collectRows(rows)
	})
}

// observe feeds the layer metrics and the configured observer.
func (l *Layer) observe(o Observation) {
	l.metrics.observe(o)
	if l.observer != nil {
		l.observer(o)
	}
}

func (l *Layer) classify(err error) error {
	return classify(err, l.isTransient)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

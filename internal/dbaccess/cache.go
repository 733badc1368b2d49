package dbaccess

import (
	"context"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

// QueryCache memoises results by exact query text.
//
// Keys are compared byte for byte: "SELECT 1" and "select 1" are separate
// entries. Entries never expire and are only removed by Clear.
//
// Concurrent first calls for the same key may both compute; the last store
// wins. Only idempotent reads belong in a QueryCache.
//
// Cached values are shared between callers and must not be modified.
type QueryCache[V any] struct {
	entries *xsync.MapOf[string, V]
	hits    *metrics.Counter
	misses  *metrics.Counter
}

// NewQueryCache creates an empty cache whose hit and miss counters are
// registered in set under the given name. A nil set gets a private one.
func NewQueryCache[V any](name string, set *metrics.Set) *QueryCache[V] {
	if set == nil {
		set = metrics.NewSet()
	}
	return &QueryCache[V]{
		entries: xsync.NewMapOf[string, V](),
		hits:    set.GetOrCreateCounter(fmt.Sprintf(`prodev_query_cache_hits_total{cache=%q}`, name)),
		misses:  set.GetOrCreateCounter(fmt.Sprintf(`prodev_query_cache_misses_total{cache=%q}`, name)),
	}
}

// GetOrCompute returns the value stored under key, calling compute and
// storing its result on a miss. Errors from compute are returned and
// nothing is stored.
func (c *QueryCache[V]) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error) {
	var zero V
	if key == "" {
		return zero, invalid("empty cache key")
	}

	if v, ok := c.entries.Load(key); ok {
		c.hits.Inc()
		return v, nil
	}
	c.misses.Inc()

	v, err := compute(ctx)
	if err != nil {
		return zero, err
	}
	c.entries.Store(key, v)
	return v, nil
}

// Clear removes every entry.
func (c *QueryCache[V]) Clear() {
	c.entries.Clear()
}

// Len returns the number of cached entries.
func (c *QueryCache[V]) Len() int {
	return c.entries.Size()
}

// Hits returns how many lookups were served from the cache.
func (c *QueryCache[V]) Hits() uint64 {
	return c.hits.Get()
}

// Misses returns how many lookups had to compute.
func (c *QueryCache[V]) Misses() uint64 {
	return c.misses.Get()
}

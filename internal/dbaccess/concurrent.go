package dbaccess

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Fetch is one independent read run by FetchAll.
type Fetch[T any] func(ctx context.Context) (T, error)

// Statement is a query with its bound arguments.
type Statement struct {
	Query string
	Args  []any
}

// FetchAll runs every fetch on its own goroutine and returns the results
// in submission order, whatever order they complete in.
//
// Each fetch must acquire its own handle; nothing is shared between them.
// The first error cancels the context passed to the others and is
// returned; results that had already completed are discarded.
func FetchAll[T any](ctx context.Context, fetches ...Fetch[T]) ([]T, error) {
	results := make([]T, len(fetches))

	g, gctx := errgroup.WithContext(ctx)
	for i, fetch := range fetches {
		g.Go(func() error {
			v, err := fetch(gctx)
			if err != nil {
				return fmt.Errorf("fetch %d: %w", i, err)
			}
			results[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

package dbaccess

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestQueryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("second call does not recompute", func(t *testing.T) {
		c := NewQueryCache[int]("test", nil)
		calls := 0
		compute := func(context.Context) (int, error) {
			calls++
			return 42, nil
		}

		first, err := c.GetOrCompute(ctx, "SELECT * FROM people", compute)
		if err != nil {
			t.Fatalf("GetOrCompute() error = %v", err)
		}
		second, err := c.GetOrCompute(ctx, "SELECT * FROM people", compute)
		if err != nil {
			t.Fatalf("GetOrCompute() error = %v", err)
		}

		if first != second {
			t.Errorf("results differ: %d vs %d", first, second)
		}
		if calls != 1 {
			t.Errorf("compute calls = %d, want 1", calls)
		}
		if c.Hits() != 1 || c.Misses() != 1 {
			t.Errorf("hits = %d, misses = %d; want 1, 1", c.Hits(), c.Misses())
		}
	})

	t.Run("keys are exact text", func(t *testing.T) {
		c := NewQueryCache[string]("test", nil)
		for _, key := range []string{"SELECT 1", "select 1", "SELECT  1"} {
			if _, err := c.GetOrCompute(ctx, key, func(context.Context) (string, error) {
				return key, nil
			}); err != nil {
				t.Fatalf("GetOrCompute(%q) error = %v", key, err)
			}
		}
		if c.Len() != 3 {
			t.Errorf("Len() = %d, want 3", c.Len())
		}
	})

	t.Run("errors are not stored", func(t *testing.T) {
		c := NewQueryCache[int]("test", nil)
		errBoom := errors.New("boom")

		if _, err := c.GetOrCompute(ctx, "k", func(context.Context) (int, error) {
			return 0, errBoom
		}); !errors.Is(err, errBoom) {
			t.Fatalf("GetOrCompute() error = %v, want %v", err, errBoom)
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d after failed compute, want 0", c.Len())
		}

		got, err := c.GetOrCompute(ctx, "k", func(context.Context) (int, error) { return 7, nil })
		if err != nil || got != 7 {
			t.Errorf("GetOrCompute() = %d, %v; want 7, nil", got, err)
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		c := NewQueryCache[int]("test", nil)
		_, err := c.GetOrCompute(ctx, "", func(context.Context) (int, error) {
			t.Error("compute called for empty key")
			return 0, nil
		})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("GetOrCompute(\"\") error = %v, want ErrValidation", err)
		}
	})

	t.Run("clear forces recompute", func(t *testing.T) {
		c := NewQueryCache[int]("test", nil)
		calls := 0
		compute := func(context.Context) (int, error) {
			calls++
			return calls, nil
		}

		_, _ = c.GetOrCompute(ctx, "k", compute) //nolint:errcheck // Cannot fail
		c.Clear()
		got, err := c.GetOrCompute(ctx, "k", compute)
		if err != nil {
			t.Fatalf("GetOrCompute() error = %v", err)
		}
		if got != 2 || calls != 2 {
			t.Errorf("after Clear got %d with %d calls, want 2 and 2", got, calls)
		}
	})

	t.Run("concurrent readers", func(t *testing.T) {
		c := NewQueryCache[int]("test", nil)
		var wg sync.WaitGroup
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := c.GetOrCompute(ctx, "shared", func(context.Context) (int, error) { return 9, nil })
				if err != nil || v != 9 {
					t.Errorf("GetOrCompute() = %d, %v; want 9, nil", v, err)
				}
			}()
		}
		wg.Wait()

		if c.Len() != 1 {
			t.Errorf("Len() = %d, want 1", c.Len())
		}
		if c.Hits()+c.Misses() != 32 {
			t.Errorf("hits + misses = %d, want 32", c.Hits()+c.Misses())
		}
	})
}

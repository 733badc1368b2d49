package dbaccess

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// tracer records the order middlewares run in.
func tracer(trace *[]string, name string) Middleware[int] {
	return func(next Operation[int]) Operation[int] {
		return func(ctx context.Context) (int, error) {
			*trace = append(*trace, name)
			return next(ctx)
		}
	}
}

func TestChainOrder(t *testing.T) {
	var trace []string
	op := Chain[int](
		func(context.Context) (int, error) {
			trace = append(trace, "op")
			return 1, nil
		},
		tracer(&trace, "outer"),
		tracer(&trace, "inner"),
	)

	if _, err := op(context.Background()); err != nil {
		t.Fatalf("op() error = %v", err)
	}
	if diff := cmp.Diff([]string{"outer", "inner", "op"}, trace); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheOutsideRetry(t *testing.T) {
	c := NewQueryCache[int]("test", nil)
	calls := 0
	op := Chain[int](
		func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("flaky")
			}
			return 5, nil
		},
		WithCache(c, "k"),
		WithRetry[int](RetryPolicy{MaxAttempts: 2, newTimer: (&recordingTimers{}).newTimer}),
	)

	for range 3 {
		v, err := op(context.Background())
		if err != nil || v != 5 {
			t.Fatalf("op() = %d, %v; want 5, nil", v, err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one failure, one success, then cache)", calls)
	}
}

func TestWithObserver(t *testing.T) {
	errBoom := errors.New("boom")
	var got Observation
	op := Chain[int](
		func(context.Context) (int, error) { return 0, errBoom },
		WithObserver[int](func(o Observation) { got = o }, "exec", "DELETE FROM people"),
	)

	if _, err := op(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("op() error = %v, want %v", err, errBoom)
	}
	if got.Kind != "exec" || got.Query != "DELETE FROM people" || !errors.Is(got.Err, errBoom) {
		t.Errorf("observation = %+v", got)
	}
}

func TestClassify(t *testing.T) {
	raw := errors.New("database is locked")
	always := func(error) bool { return true }
	never := func(error) bool { return false }

	tests := []struct {
		name        string
		err         error
		isTransient func(error) bool
		want        error
	}{
		{"transient", raw, always, ErrTransientQuery},
		{"permanent", raw, never, ErrQuery},
		{"no classifier", raw, nil, ErrQuery},
		{"already classified", ErrNoRows, always, ErrNoRows},
		{"context error", context.Canceled, always, context.Canceled},
		{"released handle", sql.ErrConnDone, always, ErrHandleReleased},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, tt.isTransient)
			if !errors.Is(got, tt.want) || !errors.Is(got, tt.err) {
				t.Errorf("classify() = %v, want %v wrapping %v", got, tt.want, tt.err)
			}
		})
	}

	if classify(nil, always) != nil {
		t.Error("classify(nil) != nil")
	}
	if errors.Is(classify(context.Canceled, always), ErrTransientQuery) {
		t.Error("context errors must not be classified as transient")
	}
}

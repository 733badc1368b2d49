package dbaccess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFetchAll(t *testing.T) {
	ctx := context.Background()

	t.Run("results follow submission order", func(t *testing.T) {
		secondDone := make(chan struct{})

		got, err := FetchAll[string](ctx,
			func(ctx context.Context) (string, error) {
				select {
				case <-secondDone:
					return "first", nil
				case <-ctx.Done():
					return "", ctx.Err()
				}
			},
			func(context.Context) (string, error) {
				defer close(secondDone)
				return "second", nil
			},
		)
		if err != nil {
			t.Fatalf("FetchAll() error = %v", err)
		}
		if diff := cmp.Diff([]string{"first", "second"}, got); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("first error cancels siblings", func(t *testing.T) {
		errBoom := errors.New("boom")

		got, err := FetchAll[int](ctx,
			func(ctx context.Context) (int, error) {
				select {
				case <-ctx.Done():
					return 0, ctx.Err()
				case <-time.After(5 * time.Second):
					return 1, nil
				}
			},
			func(context.Context) (int, error) { return 0, errBoom },
		)
		if !errors.Is(err, errBoom) {
			t.Errorf("FetchAll() error = %v, want %v", err, errBoom)
		}
		if got != nil {
			t.Errorf("FetchAll() results = %v, want nil", got)
		}
	})

	t.Run("no fetches", func(t *testing.T) {
		got, err := FetchAll[int](ctx)
		if err != nil || len(got) != 0 {
			t.Errorf("FetchAll() = %v, %v; want empty, nil", got, err)
		}
	})
}

func TestLayerQueryAll(t *testing.T) {
	db := openStore(t)
	l := newTestLayer(t, db, Options{})
	ctx := context.Background()

	got, err := l.QueryAll(ctx,
		Statement{Query: orderedPeople},
		Statement{Query: "SELECT name FROM people WHERE age > ? ORDER BY id", Args: []any{29}},
	)
	if err != nil {
		t.Fatalf("QueryAll() error = %v", err)
	}
	if len(got) != 2 || len(got[0]) != 4 || len(got[1]) != 2 {
		t.Fatalf("QueryAll() sizes = %d sets, want [4 2]", len(got))
	}
	if got[1][0].String("name") != "Ada" || got[1][1].String("name") != "Cy" {
		t.Errorf("second set = %v, want Ada and Cy", rowMaps(got[1]))
	}
	waitIdle(t, db)

	if _, err := l.QueryAll(ctx, Statement{Query: ""}); !errors.Is(err, ErrValidation) {
		t.Errorf("QueryAll(empty) error = %v, want ErrValidation", err)
	}
}

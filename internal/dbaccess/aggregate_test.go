package dbaccess

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAverage(t *testing.T) {
	db := openStore(t)
	l := newTestLayer(t, db, Options{})
	ctx := context.Background()

	t.Run("mean of seeded ages", func(t *testing.T) {
		stream, err := l.StreamRows(ctx, "SELECT age FROM people")
		if err != nil {
			t.Fatalf("StreamRows() error = %v", err)
		}
		avg, err := Average(ctx, stream, "age")
		if err != nil {
			t.Fatalf("Average() error = %v", err)
		}
		if avg != 31.25 {
			t.Errorf("Average() = %v, want 31.25", avg)
		}
		waitIdle(t, db)
	})

	t.Run("empty stream reports no data", func(t *testing.T) {
		stream, err := l.StreamRows(ctx, "SELECT age FROM people WHERE age > ?", 1000)
		if err != nil {
			t.Fatalf("StreamRows() error = %v", err)
		}
		if _, err := Average(ctx, stream, "age"); !errors.Is(err, ErrNoData) {
			t.Errorf("Average() error = %v, want ErrNoData", err)
		}
		waitIdle(t, db)
	})

	t.Run("non-numeric column", func(t *testing.T) {
		stream, err := l.StreamRows(ctx, orderedPeople)
		if err != nil {
			t.Fatalf("StreamRows() error = %v", err)
		}
		if _, err := Average(ctx, stream, "name"); !errors.Is(err, ErrValidation) {
			t.Errorf("Average() error = %v, want ErrValidation", err)
		}
		waitIdle(t, db)
	})
}

func TestFilter(t *testing.T) {
	db := openStore(t)
	l := newTestLayer(t, db, Options{})
	ctx := context.Background()

	batches, err := l.StreamBatches(ctx, 3, orderedPeople)
	if err != nil {
		t.Fatalf("StreamBatches() error = %v", err)
	}

	older := Filter(batches, func(r Row) bool {
		age, err := r.Int64("age")
		return err == nil && age > 25
	})
	rows, err := Collect(ctx, older)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var names []string
	for _, r := range rows {
		names = append(names, r.String("name"))
	}
	if diff := cmp.Diff([]string{"Ada", "Cy", "Di"}, names); diff != "" {
		t.Errorf("filtered names mismatch (-want +got):\n%s", diff)
	}
	waitIdle(t, db)
}

func TestMap(t *testing.T) {
	db := openStore(t)
	l := newTestLayer(t, db, Options{})
	ctx := context.Background()

	stream, err := l.StreamRows(ctx, orderedPeople)
	if err != nil {
		t.Fatalf("StreamRows() error = %v", err)
	}
	names, err := Collect(ctx, Map(Producer[Row](stream), func(r Row) (string, error) {
		return r.String("name"), nil
	}))
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Ada", "Bo", "Cy", "Di"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	stream, err = l.StreamRows(ctx, orderedPeople)
	if err != nil {
		t.Fatalf("StreamRows() error = %v", err)
	}
	errBad := errors.New("bad row")
	_, err = Collect(ctx, Map(Producer[Row](stream), func(Row) (int, error) { return 0, errBad }))
	if !errors.Is(err, errBad) {
		t.Errorf("Collect() error = %v, want %v", err, errBad)
	}
	waitIdle(t, db)
}

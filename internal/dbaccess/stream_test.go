package dbaccess

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRowStream(t *testing.T) {
	db := openStore(t)
	l := newTestLayer(t, db, Options{})
	ctx := context.Background()

	t.Run("yields every row in order then EOF", func(t *testing.T) {
		stream, err := l.StreamRows(ctx, orderedPeople)
		if err != nil {
			t.Fatalf("StreamRows() error = %v", err)
		}

		var names []string
		for {
			row, err := stream.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			names = append(names, row.String("name"))
		}

		if diff := cmp.Diff([]string{"Ada", "Bo", "Cy", "Di"}, names); diff != "" {
			t.Errorf("names mismatch (-want +got):\n%s", diff)
		}
		if _, err := stream.Next(ctx); !errors.Is(err, io.EOF) {
			t.Errorf("Next() after EOF error = %v, want io.EOF", err)
		}
		waitIdle(t, db)
	})

	t.Run("early close releases handle", func(t *testing.T) {
		stream, err := l.StreamRows(ctx, orderedPeople)
		if err != nil {
			t.Fatalf("StreamRows() error = %v", err)
		}
		if _, err := stream.Next(ctx); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if err := stream.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := stream.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
		waitIdle(t, db)
	})

	t.Run("range loop break closes stream", func(t *testing.T) {
		stream, err := l.StreamRows(ctx, orderedPeople)
		if err != nil {
			t.Fatalf("StreamRows() error = %v", err)
		}
		for _, err := range All[Row](ctx, stream) {
			if err != nil {
				t.Fatalf("All() error = %v", err)
			}
			break
		}
		waitIdle(t, db)
	})

	t.Run("cancelled context ends stream", func(t *testing.T) {
		stream, err := l.StreamRows(ctx, orderedPeople)
		if err != nil {
			t.Fatalf("StreamRows() error = %v", err)
		}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := stream.Next(cctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Next() error = %v, want context.Canceled", err)
		}
		waitIdle(t, db)
	})

	t.Run("bad query is classified and releases handle", func(t *testing.T) {
		_, err := l.StreamRows(ctx, "SELECT nope FROM missing_table")
		if !errors.Is(err, ErrQuery) {
			t.Errorf("StreamRows() error = %v, want ErrQuery", err)
		}
		waitIdle(t, db)
	})
}

func TestBatchStream(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	t.Run("size 3 over 4 rows yields 3 then 1", func(t *testing.T) {
		l := newTestLayer(t, db, Options{})
		batches, err := l.StreamBatches(ctx, 3, orderedPeople)
		if err != nil {
			t.Fatalf("StreamBatches() error = %v", err)
		}

		got, err := Collect[[]Row](ctx, batches)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if len(got) != 2 || len(got[0]) != 3 || len(got[1]) != 1 {
			t.Errorf("batch sizes = %v, want [3 1]", batchSizes(got))
		}
		waitIdle(t, db)
	})

	t.Run("even division ends on empty batch", func(t *testing.T) {
		l := newTestLayer(t, db, Options{})
		batches, err := l.StreamBatches(ctx, 2, orderedPeople)
		if err != nil {
			t.Fatalf("StreamBatches() error = %v", err)
		}
		defer batches.Close() //nolint:errcheck // Test cleanup

		for i := range 2 {
			b, err := batches.Next(ctx)
			if err != nil || len(b) != 2 {
				t.Fatalf("batch %d: len = %d, err = %v; want 2, nil", i, len(b), err)
			}
		}
		if _, err := batches.Next(ctx); !errors.Is(err, io.EOF) {
			t.Errorf("third Next() error = %v, want io.EOF", err)
		}
		waitIdle(t, db)
	})

	t.Run("concatenated batches equal a single scan", func(t *testing.T) {
		l := newTestLayer(t, db, Options{})
		all, err := l.Query(ctx, orderedPeople)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}

		for size := 1; size <= len(all); size++ {
			batches, err := l.StreamBatches(ctx, size, orderedPeople)
			if err != nil {
				t.Fatalf("StreamBatches(%d) error = %v", size, err)
			}
			got, err := Collect[[]Row](ctx, batches)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}

			var flat []Row
			for _, b := range got {
				if len(b) > size {
					t.Errorf("size %d: batch of %d rows", size, len(b))
				}
				flat = append(flat, b...)
			}
			if diff := cmp.Diff(rowMaps(all), rowMaps(flat)); diff != "" {
				t.Errorf("size %d: rows mismatch (-want +got):\n%s", size, diff)
			}
		}
	})

	t.Run("non-positive size fails before touching the store", func(t *testing.T) {
		conn := &countingConnector{Connector: db}
		l := newTestLayer(t, conn, Options{})

		for _, size := range []int{0, -1} {
			if _, err := l.StreamBatches(ctx, size, orderedPeople); !errors.Is(err, ErrValidation) {
				t.Errorf("StreamBatches(%d) error = %v, want ErrValidation", size, err)
			}
		}
		if got := conn.calls.Load(); got != 0 {
			t.Errorf("Conn() calls = %d, want 0", got)
		}
	})
}

func TestPageSource(t *testing.T) {
	db := openStore(t)
	l := newTestLayer(t, db, Options{})
	ctx := context.Background()

	t.Run("size 2 yields two full pages then an empty one", func(t *testing.T) {
		pages, err := l.Pages(orderedPeople, 2)
		if err != nil {
			t.Fatalf("Pages() error = %v", err)
		}

		for i, wantOffset := range []int{0, 2} {
			page, err := pages.Next(ctx)
			if err != nil {
				t.Fatalf("page %d: Next() error = %v", i, err)
			}
			if len(page.Rows) != 2 || page.Offset != wantOffset {
				t.Errorf("page %d: %d rows at offset %d, want 2 at %d", i, len(page.Rows), page.Offset, wantOffset)
			}
		}
		if _, err := pages.Next(ctx); !errors.Is(err, io.EOF) {
			t.Errorf("third Next() error = %v, want io.EOF", err)
		}

		empty, err := pages.Fetch(ctx, 4)
		if err != nil {
			t.Fatalf("Fetch(4) error = %v", err)
		}
		if len(empty.Rows) != 0 {
			t.Errorf("Fetch(4) rows = %d, want 0", len(empty.Rows))
		}
		waitIdle(t, db)
	})

	t.Run("pages can be refetched independently", func(t *testing.T) {
		pages, err := l.Pages(orderedPeople, 2)
		if err != nil {
			t.Fatalf("Pages() error = %v", err)
		}

		first, err := pages.Fetch(ctx, 2)
		if err != nil {
			t.Fatalf("Fetch(2) error = %v", err)
		}
		again, err := pages.Fetch(ctx, 2)
		if err != nil {
			t.Fatalf("Fetch(2) error = %v", err)
		}
		if diff := cmp.Diff(rowMaps(first.Rows), rowMaps(again.Rows)); diff != "" {
			t.Errorf("refetch mismatch (-first +again):\n%s", diff)
		}
		if got := first.Rows[0].String("name"); got != "Cy" {
			t.Errorf("first row at offset 2 = %q, want Cy", got)
		}
		if pages.Offset() != 0 {
			t.Errorf("Offset() = %d after Fetch, want 0", pages.Offset())
		}
	})

	t.Run("paged rows equal batch and row streams", func(t *testing.T) {
		all, err := l.Query(ctx, orderedPeople)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}

		for size := 1; size <= len(all)+1; size++ {
			pages, err := l.Pages(orderedPeople+";", size)
			if err != nil {
				t.Fatalf("Pages(%d) error = %v", size, err)
			}
			got, err := Collect[Page](ctx, pages)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			var flat []Row
			for _, p := range got {
				flat = append(flat, p.Rows...)
			}
			if diff := cmp.Diff(rowMaps(all), rowMaps(flat)); diff != "" {
				t.Errorf("size %d: rows mismatch (-want +got):\n%s", size, diff)
			}
		}
	})

	t.Run("query arguments precede limit and offset", func(t *testing.T) {
		pages, err := l.Pages("SELECT name FROM people WHERE age > ? ORDER BY id", 10, 25)
		if err != nil {
			t.Fatalf("Pages() error = %v", err)
		}
		page, err := pages.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if len(page.Rows) != 3 {
			t.Errorf("rows = %d, want 3 (ages 30, 45, 28)", len(page.Rows))
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		if _, err := l.Pages(orderedPeople, 0); !errors.Is(err, ErrValidation) {
			t.Errorf("Pages(size 0) error = %v, want ErrValidation", err)
		}
		if _, err := l.Pages("  ", 2); !errors.Is(err, ErrValidation) {
			t.Errorf("Pages(empty) error = %v, want ErrValidation", err)
		}
		pages, err := l.Pages(orderedPeople, 2)
		if err != nil {
			t.Fatalf("Pages() error = %v", err)
		}
		if _, err := pages.Fetch(ctx, -1); !errors.Is(err, ErrValidation) {
			t.Errorf("Fetch(-1) error = %v, want ErrValidation", err)
		}
	})
}

func batchSizes(batches [][]Row) []int {
	sizes := make([]int, len(batches))
	for i, b := range batches {
		sizes[i] = len(b)
	}
	return sizes
}

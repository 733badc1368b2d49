package dbaccess

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/prodev-core/internal/infrastructure/database"
)

// orderedPeople reads the seeded people table in insertion order.
const orderedPeople = "SELECT id, name, age FROM people ORDER BY id"

var errRefused = errors.New("connection refused")

// openStore opens a temp-file SQLite database seeded with four people aged
// 30, 22, 45 and 28.
func openStore(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "access.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE people (
			id INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			age DECIMAL(5,0) NOT NULL
		)
	`); err != nil {
		t.Fatalf("create people: %v", err)
	}

	for _, p := range []struct {
		name string
		age  int
	}{
		{"Ada", 30},
		{"Bo", 22},
		{"Cy", 45},
		{"Di", 28},
	} {
		if _, err := db.ExecContext(ctx, "INSERT INTO people (name, age) VALUES (?, ?)", p.name, p.age); err != nil {
			t.Fatalf("insert %s: %v", p.name, err)
		}
	}
	return db
}

// countPeople returns the number of rows in people.
func countPeople(t *testing.T, db *database.DB) int {
	t.Helper()

	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM people").Scan(&n); err != nil {
		t.Fatalf("count people: %v", err)
	}
	return n
}

// countingConnector counts Conn calls and fails the first failFirst of them.
type countingConnector struct {
	Connector
	failFirst int64
	calls     atomic.Int64
}

func (c *countingConnector) Conn(ctx context.Context) (*sql.Conn, error) {
	if n := c.calls.Add(1); n <= c.failFirst {
		return nil, errRefused
	}
	return c.Connector.Conn(ctx)
}

// recordingTimers hands out timers that fire at once and records every
// requested delay. It is safe for concurrent retries.
type recordingTimers struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingTimers) newTimer() backoff.Timer {
	return &instantTimer{rec: r, c: make(chan time.Time, 1)}
}

type instantTimer struct {
	rec *recordingTimers
	c   chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.rec.mu.Lock()
	t.rec.delays = append(t.rec.delays, d)
	t.rec.mu.Unlock()
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

// newTestLayer builds a Layer whose retries never actually sleep.
func newTestLayer(t *testing.T, connector Connector, opts Options) *Layer {
	t.Helper()

	if opts.Retry.newTimer == nil {
		opts.Retry.newTimer = (&recordingTimers{}).newTimer
	}
	l, err := New(connector, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l
}

// rowMaps converts rows for comparison with cmp.Diff.
func rowMaps(rows []Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.Map()
	}
	return out
}

// waitIdle fails the test if db still has connections in use.
func waitIdle(t *testing.T, db *database.DB) {
	t.Helper()

	if inUse := db.Stats().InUse; inUse != 0 {
		t.Errorf("Stats().InUse = %d, want 0 (handle leaked)", inUse)
	}
}

package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestOpen verifies database connection establishment.
func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(context.Background(), Config{
			Path:        dbPath,
			WALMode:     true,
			BusyTimeout: 5,
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("creates directory if not exists", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

		db, err := Open(context.Background(), Config{
			Path:        dbPath,
			BusyTimeout: 5,
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("database directory was not created")
		}
	})

	t.Run("defaults driver to sqlite3", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(context.Background(), Config{Path: dbPath})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if db.Driver() != DriverSQLite {
			t.Errorf("Driver() = %q, want %q", db.Driver(), DriverSQLite)
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		_, err := Open(context.Background(), Config{Driver: "oracle", Path: "x.db"})
		if err == nil || !strings.Contains(err.Error(), "unsupported database driver") {
			t.Errorf("Open() error = %v, want unsupported driver", err)
		}
	})

	t.Run("sqlite3 requires path", func(t *testing.T) {
		if _, err := Open(context.Background(), Config{Driver: DriverSQLite}); err == nil {
			t.Error("Open() with empty path expected error, got nil")
		}
	})

	t.Run("mysql rejects unsafe database name", func(t *testing.T) {
		_, err := Open(context.Background(), Config{
			Driver: DriverMySQL,
			Host:   "localhost",
			Port:   3306,
			Name:   "prodev`; DROP DATABASE x",
		})
		if err == nil || !strings.Contains(err.Error(), "invalid mysql database name") {
			t.Errorf("Open() error = %v, want invalid name", err)
		}
	})
}

func TestMySQLConfig(t *testing.T) {
	cfg := Config{Host: "db.local", Port: 3307, User: "root", Password: "secret", Name: "ALX_prodev"}

	mc := mysqlConfig(cfg, cfg.Name)
	if mc.Addr != "db.local:3307" {
		t.Errorf("Addr = %q, want db.local:3307", mc.Addr)
	}
	if mc.DBName != "ALX_prodev" {
		t.Errorf("DBName = %q, want ALX_prodev", mc.DBName)
	}
	if !mc.ParseTime || !mc.MultiStatements {
		t.Errorf("ParseTime = %v, MultiStatements = %v, want both true", mc.ParseTime, mc.MultiStatements)
	}
	if !mc.ClientFoundRows {
		t.Error("ClientFoundRows = false, want true so unchanged updates count as found")
	}

	server := mysqlConfig(cfg, "")
	if server.DBName != "" {
		t.Errorf("server-level DBName = %q, want empty", server.DBName)
	}
}

// TestHealthCheck verifies the health check functionality.
func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// TestClose verifies graceful shutdown.
func TestClose(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Second close should not error (nil check)
	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

// TestConcurrentConnections verifies two connections can be held at once.
func TestConcurrentConnections(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn() first error = %v", err)
	}
	defer first.Close() //nolint:errcheck // Test cleanup

	second, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn() second error = %v", err)
	}
	defer second.Close() //nolint:errcheck // Test cleanup

	if got := db.Stats().InUse; got != 2 {
		t.Errorf("Stats().InUse = %d, want 2", got)
	}
}

// TestStats verifies connection pool statistics.
func TestStats(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	stats := db.Stats()
	if stats.MaxOpenConnections != defaultMaxOpenConns {
		t.Errorf("MaxOpenConnections = %v, want %d", stats.MaxOpenConnections, defaultMaxOpenConns)
	}
}

// openTestDB creates a temporary file-backed database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return db
}

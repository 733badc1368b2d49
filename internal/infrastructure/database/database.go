package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Supported driver names, matching config.DriverSQLite and config.DriverMySQL.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute

	// defaultMaxOpenConns bounds concurrent borrowers when the config leaves it unset.
	defaultMaxOpenConns = 4
)

// validIdentifier matches database names that are safe to interpolate into DDL.
// Identifiers cannot be bound as parameters, so they are checked instead.
var validIdentifier = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// DB wraps a sql.DB connection with migration support, health checks,
// and lifecycle management.
type DB struct {
	*sql.DB
	driver string
	path   string
}

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Driver selects the store: "sqlite3" (default) or "mysql".
	Driver string

	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging so readers do not block each other.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// MaxOpenConns bounds the number of connections handed out at once.
	// Each access layer operation holds exactly one of them.
	MaxOpenConns int

	// MySQL connection settings.
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// Open creates a new database connection with the specified configuration.
//
// For sqlite3 it creates the database directory, applies WAL and busy
// timeout pragmas, and restricts the file to 0600. For mysql it creates the
// configured database if missing and connects to it.
//
// The connection is verified with a ping before returning.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	var (
		sqlDB *sql.DB
		err   error
	)

	switch cfg.Driver {
	case "", DriverSQLite:
		cfg.Driver = DriverSQLite
		sqlDB, err = openSQLite(cfg)
	case DriverMySQL:
		sqlDB, err = openMySQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen < 1 {
		maxOpen = defaultMaxOpenConns
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{
		DB:     sqlDB,
		driver: cfg.Driver,
		path:   cfg.Path,
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// Ignore error - the file is created lazily by the driver
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Intentional: first run creates file later
	}

	return db, nil
}

// openSQLite opens a SQLite database file with prodev's pragmas.
func openSQLite(cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite3 requires a database path")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open(DriverSQLite, connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return sqlDB, nil
}

// openMySQL ensures the configured database exists and connects to it.
func openMySQL(ctx context.Context, cfg Config) (*sql.DB, error) {
	if !validIdentifier.MatchString(cfg.Name) {
		return nil, fmt.Errorf("invalid mysql database name %q", cfg.Name)
	}

	if err := ensureMySQLDatabase(ctx, cfg); err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(mysqlConfig(cfg, cfg.Name))
	if err != nil {
		return nil, fmt.Errorf("building mysql connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// ensureMySQLDatabase creates the database on the server if it does not exist.
func ensureMySQLDatabase(ctx context.Context, cfg Config) error {
	connector, err := mysql.NewConnector(mysqlConfig(cfg, ""))
	if err != nil {
		return fmt.Errorf("building mysql connector: %w", err)
	}

	server := sql.OpenDB(connector)
	defer server.Close() //nolint:errcheck // Short-lived bootstrap connection

	createCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	// Name was validated against validIdentifier by the caller.
	if _, err := server.ExecContext(createCtx, "CREATE DATABASE IF NOT EXISTS `"+cfg.Name+"`"); err != nil {
		return fmt.Errorf("creating database %s: %w", cfg.Name, err)
	}
	return nil
}

// mysqlConfig builds a driver config; dbName may be empty for server-level access.
func mysqlConfig(cfg Config, dbName string) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = dbName
	mc.ParseTime = true
	mc.MultiStatements = true // migrations contain several statements
	// RowsAffected counts matched rows, so an update that rewrites the
	// current value still reports the row as found.
	mc.ClientFoundRows = true
	mc.Timeout = connectionTimeout
	return mc
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Driver returns the name of the driver backing this database.
func (db *DB) Driver() string {
	return db.driver
}

// Path returns the filesystem path to the database file (sqlite3 only).
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible and functioning.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns database connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

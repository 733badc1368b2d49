// Package database opens and maintains the relational store behind prodev.
//
// This package manages:
//   - Connections to SQLite (default, WAL mode) or MySQL (go-sql-driver/mysql)
//   - Schema migrations read from an fs.FS of *.up.sql / *.down.sql pairs
//   - Connection pool sizing and lifecycle
//   - Classification of driver errors (transient, unique violation)
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - The MySQL database name is the only identifier interpolated into DDL
//     and is validated against [A-Za-z0-9_] first
//   - SQLite file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout turns short lock contention into waiting rather than errors
//   - The pool allows several connections so that an open stream and a
//     concurrent fetch never wait on each other
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:    "./data/prodev.db",
//	    WALMode: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration SQL must run unchanged on both drivers, so it sticks to
// CHAR, VARCHAR, DECIMAL and IF [NOT] EXISTS.
package database

// Package dbaccess is a resilient, memory-bounded access layer over
// database/sql.
//
// Every operation borrows exactly one connection for its lifetime and
// returns it on every exit path. Around that core the package offers:
//   - Scope and Handle: acquire one exclusive *sql.Conn, release it once
//   - Transactor: commit when the work succeeds, roll back otherwise
//   - RetryPolicy: bounded attempts with a fixed delay, each on a fresh handle
//   - QueryCache: results memoised by exact query text
//   - Producers: row, batch and page streams that hold at most one unit
//   - FetchAll: independent reads in parallel, results in submission order
//
// Layer composes these pieces in a fixed order. Reads run as
//
//	Observer -> Retry -> QueryLog -> Scope -> query
//
// cached reads put Cache in front of that chain, and writes add a
// Transaction inside the scope. The same building blocks are exported
// (Operation, Middleware, Chain, Scoped, Transactional) so callers can
// assemble their own chains.
//
// Usage:
//
//	layer, err := dbaccess.New(db, dbaccess.Options{
//	    Retry:       dbaccess.RetryPolicy{MaxAttempts: 3, Delay: time.Second},
//	    IsTransient: database.IsTransient,
//	})
//	if err != nil {
//	    return err
//	}
//
//	stream, err := layer.StreamRows(ctx, "SELECT age FROM user_data")
//	if err != nil {
//	    return err
//	}
//	avg, err := dbaccess.Average(ctx, stream, "age")
//
// Errors are classified with the sentinels in errors.go; use errors.Is.
//
// Thread Safety:
//
// Layer, Scope, Transactor, RetryPolicy and QueryCache are safe for
// concurrent use. A Handle and the streams built on one belong to a single
// goroutine.
package dbaccess

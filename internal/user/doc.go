// Package user manages the user_data records served by prodev.
//
// The Repository is a consumer of the dbaccess layer: every read and write
// goes through a dbaccess.Layer, so it inherits scoped connections,
// retries, transactions and caching without handling any of them itself.
//
// Besides plain CRUD it exposes the streaming views of the table:
//   - Stream: one user at a time from a single cursor
//   - Batches / OlderThan: fixed-size batches, optionally filtered by age
//   - Pages / Page: LIMIT/OFFSET pages, each on its own connection
//   - AverageAge: mean age computed over a stream in constant memory
//   - AllAndOlder: two independent reads run concurrently
//
// Seed loads users from CSV, skipping ids that already exist, so it can be
// re-run against the same file.
//
// Committed writes are announced through an optional Notifier (MQTT in
// production).
package user

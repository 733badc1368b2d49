// Package migrations embeds the prodev SQL migrations into the binary.
//
// The files sit at the root of FS, ready for database.DB.Migrate.
package migrations

import "embed"

// FS holds every *.up.sql / *.down.sql pair in this directory.
//
//go:embed *.sql
var FS embed.FS

package migrations

import "embed"

// FS contains embedded SQLite migrations for circles storage.
//
//go:embed *.sql
var FS embed.FS

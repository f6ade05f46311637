package migrations

import "embed"

// FS contains embedded SQLite migrations for coordinator storage.
//
//go:embed *.sql
var FS embed.FS

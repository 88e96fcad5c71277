package migrations

import "embed"

// FS contains the embedded goose migrations for the item sink.
//
//go:embed *.sql
var FS embed.FS

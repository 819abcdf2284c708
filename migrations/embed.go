// Package migrations embeds the goose SQL migrations applied to the
// embedded SQLite store on startup.
package migrations

import "embed"

// FS holds the embedded migration files, consumed by goose.SetBaseFS.
//
//go:embed *.sql
var FS embed.FS

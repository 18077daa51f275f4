// Package migrations embeds the goose SQL migrations for the vision database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the goose SQL migrations so both binaries can
// run them regardless of working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

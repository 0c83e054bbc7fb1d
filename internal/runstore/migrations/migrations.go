// Package migrations embeds the run catalog schema migrations
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the SQL migration files so binaries can migrate
// without a checkout of the repository.
package migrations

import "embed"

// FS holds every *.sql migration in this directory
//
//go:embed *.sql
var FS embed.FS

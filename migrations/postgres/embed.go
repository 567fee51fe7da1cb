// Package migrations embeds SQL migration files for PostgreSQL.
package migrations

import "embed"

// FS contains the migrations for the local user mirror.
//
//go:embed sql/*.sql
var FS embed.FS

// Dir is the directory within FS where migrations live.
const Dir = "sql"

// Package migrations embeds the SQL migration files applied at startup.
package migrations

import "embed"

// FS holds every .sql file in this directory, applied in lexical order
// (001_evaluation_metrics.sql first).
//
//go:embed *.sql
var FS embed.FS

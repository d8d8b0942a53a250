package appfs

import "embed"

// FS holds the SQL migrations, run by goose from the "migrations" dir.
//
//go:embed migrations/*.sql
var FS embed.FS

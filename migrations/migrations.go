package migrations

import "embed"

// Embedded schema files bundled at compile time, one directory per driver.
// Single binary deployment without external file dependencies
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS

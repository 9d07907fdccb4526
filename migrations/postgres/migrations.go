package migrations

import (
	"embed"

	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var migrationFS embed.FS

// FS exposes the embedded SQL for external runners.
var FS = migrationFS

// Migrations is a bun/migrate registry for the profiles schema.
var Migrations = migrate.NewMigrations()

func init() {
	_ = Migrations.Discover(migrationFS)
}

package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrate brings the store's on-disk schema up to the current version. If
// the store file exists in an older schema version, goose applies any
// missing migrations in place; if the file is new, the full schema is
// created. There is deliberately no drop-and-recreate path here: every
// migration in this package is written to be safely re-appliable
// (CREATE TABLE/INDEX IF NOT EXISTS), so "attempt in-place upgrade" and
// "create fresh" are the same code path.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("unable to set migration dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}

	return nil
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/solveiti/trgscout/migrations"
)

// RunMigrations applies all pending database migrations using goose against
// the embedded SQL files in the migrations package. Schema creation is
// idempotent: goose records applied versions and is a no-op on a database
// that is already current; migrations are additive (never drop/rename).
func RunMigrations(db *sql.DB) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

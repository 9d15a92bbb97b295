// Package migrations runs golang-migrate/migrate schema migrations for
// the tables the State-Handler Framework and the prefix/IP allocation
// engine depend on. AutoMigrate in internal/store handles day-to-day
// schema evolution for SQLite development use; this package is the
// production path for PostgreSQL deployments that want reviewable,
// versioned migrations instead.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Run applies every pending migration against the given PostgreSQL
// connection string, returning nil if the schema was already current.
func Run(postgresDSN string) error {
	source, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, postgresDSN)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

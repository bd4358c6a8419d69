// Package migrations manages the verse/token store's schema via
// golang-migrate, applying the books/chapters/verses/tokens/
// cross_references tables.
package migrations

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sola-scriptura-search-api/internal/pipeline"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Migrator wraps golang-migrate for the verse/token store. It is not safe
// for concurrent use; callers run migrations from a single goroutine before
// opening the Corpus Reader against the same database.
type Migrator struct {
	m *migrate.Migrate
}

// New builds a Migrator for driver ("postgres" or "sqlite3") against
// databaseURL.
func New(driver, databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return nil, pipeline.ConfigError("open embedded migration source: " + err.Error())
	}

	var m *migrate.Migrate
	switch driver {
	case "sqlite3", "sqlite":
		path := strings.TrimPrefix(databaseURL, "sqlite3://")
		m, err = migrate.NewWithSourceInstance("iofs", source, "sqlite3://"+path)
	default:
		m, err = migrate.NewWithSourceInstance("iofs", source, databaseURL)
	}
	if err != nil {
		_ = source.Close()
		return nil, pipeline.ConfigError("initialize migrator: " + err.Error())
	}

	return &Migrator{m: m}, nil
}

// Up applies all pending migrations.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return pipeline.SchemaError("apply migrations: " + err.Error())
	}
	return nil
}

// Down rolls back every migration, dropping the schema entirely.
func (mg *Migrator) Down() error {
	if err := mg.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return pipeline.SchemaError("roll back migrations: " + err.Error())
	}
	return nil
}

// Version reports the current schema version and dirty state.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, pipeline.SchemaError("read migration version: " + err.Error())
	}
	return version, dirty, nil
}

// Close releases the source and database handles held by the migrator.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

// Package migrations holds the registry schema, applied with goose.
package migrations

import (
	"database/sql"
	"embed"
	"sync"

	"github.com/pressly/goose/v3"

	"eventanalyzer/pkg/errors"
)

// FS contains the SQL migration files
//
//go:embed *.sql
var FS embed.FS

// goose keeps its base FS and dialect in package state
var mu sync.Mutex

// Up applies pending migrations. dialect is a goose dialect name ("postgres", "sqlite3").
func Up(db *sql.DB, dialect string) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}
	if err := goose.Up(db, "."); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

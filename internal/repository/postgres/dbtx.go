package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"eventanalyzer/pkg/errors"
)

// DBTX is a common interface for *sqlx.DB and *sqlx.Tx
// Queries are written with "?" placeholders and passed through Rebind,
// so the same statements run on PostgreSQL and SQLite.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

var (
	_ DBTX = (*sqlx.DB)(nil)
	_ DBTX = (*sqlx.Tx)(nil)
)

// withTx runs fn in a transaction, rolling back on error
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return registryErr(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return registryErr(err, "commit transaction")
	}
	return nil
}

// registryErr marks a driver failure as a registry error
func registryErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.ErrRegistry, errors.Wrap(err, msg))
}

package postgres

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"eventanalyzer/internal/adapters/sqlite"
	"eventanalyzer/internal/testsupport"
)

// backends returns every database the repository tests run against.
// SQLite is always available; PostgreSQL joins when the test env provides it.
func backends(t *testing.T) map[string]*sqlx.DB {
	t.Helper()

	dbs := map[string]*sqlx.DB{}

	lite, err := sqlite.NewClient(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })
	dbs["sqlite"] = lite.DB()

	if _, ok := testsupport.PostgresConfig(); ok && !testing.Short() {
		dbs["postgres"] = testsupport.NewTestPostgres(t).DB()
	}

	return dbs
}

package testsupport

import (
	"testing"

	"eventanalyzer/internal/adapters/postgres"
)

// NewTestPostgres connects to the integration database, applies the schema and
// empties the registry tables. Skips when the environment is not configured.
func NewTestPostgres(t *testing.T) *postgres.Client {
	t.Helper()

	client, err := postgres.NewClient(RequirePostgres(t))
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	if err := client.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	for _, table := range []string{"models", "events", "status_categories"} {
		if _, err := client.DB().Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("failed to clean %s: %v", table, err)
		}
	}

	return client
}

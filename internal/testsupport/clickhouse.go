package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"eventanalyzer/internal/adapters/clickhouse"
)

// NewClickHouseClient connects to the integration ClickHouse. Skips when not configured.
func NewClickHouseClient(t *testing.T) *clickhouse.Client {
	t.Helper()

	client, err := clickhouse.NewClient(RequireClickHouse(t))
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// TempTableName returns a unique table name and drops that table when the test ends
func TempTableName(t *testing.T, client *clickhouse.Client, prefix string) string {
	t.Helper()

	table := fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	t.Cleanup(func() {
		_ = client.DropTable(context.Background(), table)
	})
	return table
}

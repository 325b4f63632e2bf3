package testsupport

import (
	"fmt"
	"os"
	"testing"

	"eventanalyzer/internal/adapters/config"
)

// PostgresConfig reads integration settings for PostgreSQL.
// ok is false when the environment does not point at a test database.
func PostgresConfig() (config.PostgresConfig, bool) {
	if missing(postgresKeys...) != nil {
		return config.PostgresConfig{}, false
	}
	return config.PostgresConfig{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     intValue("POSTGRES_PORT", 5432),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: os.Getenv("POSTGRES_DB"),
		SSLMode:  valueWithDefault("POSTGRES_SSL_MODE", "disable"),
		MaxConns: 10,
	}, true
}

// RequirePostgres returns PostgreSQL settings or skips the test
func RequirePostgres(t *testing.T) config.PostgresConfig {
	t.Helper()
	skipUnless(t, postgresKeys...)
	cfg, _ := PostgresConfig()
	return cfg
}

// RequireRedis returns Redis settings or skips the test
func RequireRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	skipUnless(t, "REDIS_HOST")
	return config.RedisConfig{
		Enabled:  true,
		Host:     os.Getenv("REDIS_HOST"),
		Port:     intValue("REDIS_PORT", 6379),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intValue("REDIS_DB", 0),
	}
}

// RequireClickHouse returns ClickHouse settings or skips the test
func RequireClickHouse(t *testing.T) config.ClickHouseConfig {
	t.Helper()
	skipUnless(t, "CLICKHOUSE_HOST", "CLICKHOUSE_DB")
	return config.ClickHouseConfig{
		Enabled:  true,
		Host:     os.Getenv("CLICKHOUSE_HOST"),
		Port:     intValue("CLICKHOUSE_PORT", 9000),
		User:     valueWithDefault("CLICKHOUSE_USER", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Database: os.Getenv("CLICKHOUSE_DB"),
	}
}

var postgresKeys = []string{"POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"}

func skipUnless(t *testing.T, keys ...string) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if m := missing(keys...); m != nil {
		t.Skipf("integration environment missing, set %v to run", m)
	}
}

func missing(keys ...string) []string {
	var out []string
	for _, key := range keys {
		if os.Getenv(key) == "" {
			out = append(out, key)
		}
	}
	return out
}

func valueWithDefault(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func intValue(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		_, err := fmt.Sscanf(val, "%d", &parsed)
		if err == nil {
			return parsed
		}
	}

	return fallback
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventanalyzer/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REGISTRY_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "GMMHMM", cfg.Analyzer.DefaultAlgorithm)
	assert.Equal(t, 10, cfg.Analyzer.TrainSequenceLength)
	assert.Equal(t, 30, cfg.Analyzer.TrainSequenceCount)
	assert.Equal(t, "random_train", cfg.Analyzer.RandomTargetTag)
	assert.Equal(t, "init_model_", cfg.Analyzer.InitTagPrefix)
	assert.Equal(t, 2*time.Minute, cfg.Analyzer.TrainLockTTL)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REGISTRY_BACKEND", "sqlite")
	t.Setenv("REGISTRY_SQLITE_PATH", "/tmp/analyzer.db")
	t.Setenv("ANALYZER_TRAIN_SEQUENCE_COUNT", "5")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Registry.Backend)
	assert.Equal(t, "/tmp/analyzer.db", cfg.Registry.SQLitePath)
	assert.Equal(t, 5, cfg.Analyzer.TrainSequenceCount)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	t.Setenv("REGISTRY_BACKEND", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	t.Setenv("REGISTRY_BACKEND", "memory")
	t.Setenv("ANALYZER_TRAIN_SEQUENCE_LENGTH", "0")
	_, err = Load()
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "events", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=events sslmode=disable", c.DSN())
}

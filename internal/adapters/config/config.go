package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"eventanalyzer/pkg/errors"
)

// Registry backends
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Registry      RegistryConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Analyzer      AnalyzerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"eventanalyzer"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	MaxBodyBytes    int64         `envconfig:"HTTP_MAX_BODY_BYTES" default:"4194304"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
}

// RegistryConfig selects where model records and event configuration live
type RegistryConfig struct {
	Backend    string        `envconfig:"REGISTRY_BACKEND" default:"postgres"`
	SQLitePath string        `envconfig:"REGISTRY_SQLITE_PATH" default:"eventanalyzer.db"`
	SeedOnBoot bool          `envconfig:"REGISTRY_SEED_ON_BOOT" default:"false"`
	CacheTTL   time.Duration `envconfig:"REGISTRY_CACHE_TTL" default:"5m"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"eventanalyzer"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`

	ConnectTimeout  time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT" default:"10s"`
	ConnMaxLifetime time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"1h"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"eventanalyzer"`

	DialTimeout  time.Duration `envconfig:"CLICKHOUSE_DIAL_TIMEOUT" default:"5s"`
	MaxOpenConns int           `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
}

func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled  bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers  []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	ClientID string   `envconfig:"KAFKA_CLIENT_ID" default:"eventanalyzer"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// AnalyzerConfig holds the orchestration defaults applied when callers omit them
type AnalyzerConfig struct {
	DefaultAlgorithm    string        `envconfig:"ANALYZER_DEFAULT_ALGORITHM" default:"GMMHMM"`
	TrainSequenceLength int           `envconfig:"ANALYZER_TRAIN_SEQUENCE_LENGTH" default:"10"`
	TrainSequenceCount  int           `envconfig:"ANALYZER_TRAIN_SEQUENCE_COUNT" default:"30"`
	RandomTargetTag     string        `envconfig:"ANALYZER_RANDOM_TARGET_TAG" default:"random_train"`
	InitTagPrefix       string        `envconfig:"ANALYZER_INIT_TAG_PREFIX" default:"init_model_"`
	RandomSeed          uint64        `envconfig:"ANALYZER_RANDOM_SEED" default:"0"` // 0 seeds from the clock
	TrainLockTTL        time.Duration `envconfig:"ANALYZER_TRAIN_LOCK_TTL" default:"2m"`
	TrainRatePerMinute  int           `envconfig:"ANALYZER_TRAIN_RATE_PER_MINUTE" default:"120"`
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	switch c.Registry.Backend {
	case BackendPostgres, BackendSQLite, BackendMemory:
	default:
		return errors.NewValidationError("REGISTRY_BACKEND", "must be postgres, sqlite or memory", c.Registry.Backend)
	}
	if c.Analyzer.TrainSequenceLength <= 0 {
		return errors.NewValidationError("ANALYZER_TRAIN_SEQUENCE_LENGTH", "must be positive", c.Analyzer.TrainSequenceLength)
	}
	if c.Analyzer.TrainSequenceCount <= 0 {
		return errors.NewValidationError("ANALYZER_TRAIN_SEQUENCE_COUNT", "must be positive", c.Analyzer.TrainSequenceCount)
	}
	if c.ErrorTracking.Enabled && c.ErrorTracking.Provider == "sentry" && c.ErrorTracking.SentryDSN == "" {
		return errors.NewValidationError("SENTRY_DSN", "required when error tracking is enabled", nil)
	}
	return nil
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

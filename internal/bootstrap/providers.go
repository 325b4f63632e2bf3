package bootstrap

import (
	"context"
	"time"

	chclient "eventanalyzer/internal/adapters/clickhouse"
	"eventanalyzer/internal/adapters/config"
	errnoop "eventanalyzer/internal/adapters/errors/noop"
	"eventanalyzer/internal/adapters/errors/sentry"
	"eventanalyzer/internal/adapters/kafka"
	pgclient "eventanalyzer/internal/adapters/postgres"
	redisclient "eventanalyzer/internal/adapters/redis"
	sqliteclient "eventanalyzer/internal/adapters/sqlite"
	"eventanalyzer/internal/api"
	"eventanalyzer/internal/api/handlers"
	"eventanalyzer/internal/api/health"
	"eventanalyzer/internal/api/ratelimit"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/events"
	"eventanalyzer/internal/lock"
	"eventanalyzer/internal/metrics"
	"eventanalyzer/internal/ml"
	"eventanalyzer/internal/ml/gmmhmm"
	chrepo "eventanalyzer/internal/repository/clickhouse"
	"eventanalyzer/internal/repository/memory"
	pgrepo "eventanalyzer/internal/repository/postgres"
	redisrepo "eventanalyzer/internal/repository/redis"
	"eventanalyzer/internal/seeds"
	"eventanalyzer/internal/services/analyzer"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	c.Metrics = metrics.New()
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the registry backend and the optional stores
func (c *Container) MustInitInfrastructure() {
	var err error

	switch c.Config.Registry.Backend {
	case config.BackendPostgres:
		c.Log.Info("Connecting to PostgreSQL...")
		c.PG, err = pgclient.NewClient(c.Config.Postgres)
		if err != nil {
			c.Log.Fatalf("failed to connect postgres: %v", err)
		}
		if err := c.PG.Migrate(); err != nil {
			c.Log.Fatalf("failed to migrate postgres: %v", err)
		}
		c.Log.Info("PostgreSQL connected")
	case config.BackendSQLite:
		c.SQLite, err = sqliteclient.NewClient(c.Config.Registry.SQLitePath)
		if err != nil {
			c.Log.Fatalf("failed to open sqlite: %v", err)
		}
		c.Log.Infow("SQLite registry opened", "path", c.SQLite.Path())
	case config.BackendMemory:
		c.Log.Warn("Using in-memory registry, models are lost on restart")
	}

	if c.Config.ClickHouse.Enabled {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("ClickHouse connected")
	}

	if c.Config.Redis.Enabled {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(c.Config.Redis)
		if err != nil {
			c.Log.Fatalf("failed to connect redis: %v", err)
		}
		c.Log.Info("Redis connected")
	}
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories initializes all domain repositories
func (c *Container) MustInitRepositories() {
	var models model.Repository
	switch {
	case c.PG != nil:
		c.Repos.Events = pgrepo.NewEventRepository(c.PG.DB())
		models = pgrepo.NewModelRepository(c.PG.DB())
	case c.SQLite != nil:
		c.Repos.Events = pgrepo.NewEventRepository(c.SQLite.DB())
		models = pgrepo.NewModelRepository(c.SQLite.DB())
	default:
		c.Repos.Events = memory.NewEventRepository()
		models = memory.NewModelRepository()
	}

	if c.Redis != nil {
		models = redisrepo.NewCachedModelRepository(models, c.Redis, c.Config.Registry.CacheTTL, c.Log)
		c.Log.Infow("Model cache enabled", "ttl", c.Config.Registry.CacheTTL)
	}
	c.Repos.Models = models

	if c.CH != nil {
		c.Repos.Predictions = chrepo.NewPredictionRepository(c.CH.Conn(), chrepo.DefaultPredictionTable, c.Log)
	}

	if c.Config.Registry.SeedOnBoot || c.Config.Registry.Backend == config.BackendMemory {
		ctx, cancel := context.WithTimeout(c.Context, time.Minute)
		defer cancel()
		if err := seeds.Apply(ctx, c.Repos.Events, c.Log); err != nil {
			c.Log.Fatalf("failed to seed registry: %v", err)
		}
	}

	c.Log.Info("Repositories initialized")
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes Kafka publishing and the training lock
func (c *Container) MustInitAdapters() {
	if c.Config.Kafka.Enabled {
		c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
		c.Adapters.Publisher = events.NewPublisher(c.Adapters.KafkaProducer, c.Log)
	}

	if c.Redis != nil {
		c.Adapters.Locker = lock.NewRedis(c.Redis, c.Log)
	} else {
		c.Adapters.Locker = lock.NewLocal()
	}
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices wires the analyzer service
func (c *Container) MustInitServices() {
	c.Services.Engines = ml.NewRegistry(gmmhmm.New())

	deps := analyzer.Deps{
		Events:  c.Repos.Events,
		Models:  c.Repos.Models,
		Engines: c.Services.Engines,
		Metrics: c.Metrics,
		Log:     c.Log,
	}
	// typed nils must not reach the service's optional interfaces
	if c.Adapters.Publisher != nil {
		deps.Publisher = c.Adapters.Publisher
	}
	if c.Repos.Predictions != nil {
		deps.Predictions = c.Repos.Predictions
	}

	cfg := c.Config.Analyzer
	c.Services.Analyzer = analyzer.NewService(analyzer.Config{
		DefaultAlgorithm:    model.Algorithm(cfg.DefaultAlgorithm),
		TrainSequenceLength: cfg.TrainSequenceLength,
		TrainSequenceCount:  cfg.TrainSequenceCount,
		RandomTargetTag:     cfg.RandomTargetTag,
		InitTagPrefix:       cfg.InitTagPrefix,
		RandomSeed:          cfg.RandomSeed,
	}, deps)

	if err := c.Metrics.Register(metrics.NewRegistryCollector(c.Log, c.Repos.Models, c.Services.Engines.Algorithms)); err != nil {
		c.Log.Warnw("Failed to register registry collector", "error", err)
	}

	c.Log.Infow("Analyzer service initialized", "algorithms", c.Services.Engines.Algorithms())
}

// ========================================
// Phase 6: Application
// ========================================

// MustInitApplication builds the HTTP server
func (c *Container) MustInitApplication() {
	c.Application.HealthHandler = provideHealthHandler(c)

	routes := handlers.New(
		c.Services.Analyzer,
		c.Adapters.Locker,
		ratelimit.TrainingLimiters(c.Config.Analyzer.TrainRatePerMinute),
		c.Metrics,
		handlers.Config{
			LockTTL:      c.Config.Analyzer.TrainLockTTL,
			MaxBodyBytes: c.Config.HTTP.MaxBodyBytes,
		},
		c.Log,
	)

	algorithms := make([]string, 0)
	for _, a := range c.Services.Engines.Algorithms() {
		algorithms = append(algorithms, a.String())
	}

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:         c.Config.HTTP.Port,
		ServiceName:  c.Config.App.Name,
		Version:      c.Config.App.Version,
		Algorithms:   algorithms,
		ReadTimeout:  c.Config.HTTP.ReadTimeout,
		WriteTimeout: c.Config.HTTP.WriteTimeout,
	}, routes, c.Application.HealthHandler, c.Metrics, c.Log)
}

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	log.Info("Initializing Kafka producer...")
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("Kafka brokers not configured, using default localhost:9092")
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
		Logger:   log,
	})
	log.Infow("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	return producer
}

func provideHealthHandler(c *Container) *health.Handler {
	h := health.New(c.Log, c.Config.App.Name, c.Config.App.Version)
	switch {
	case c.PG != nil:
		h.Register("postgres", c.PG.Health, true)
	case c.SQLite != nil:
		h.Register("sqlite", c.SQLite.Health, true)
	}
	if c.CH != nil {
		h.Register("clickhouse", c.CH.Health, false)
	}
	if c.Redis != nil {
		h.Register("redis", c.Redis.Health, false)
	}
	return h
}

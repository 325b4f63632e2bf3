package bootstrap

import (
	"context"
	"sync"

	chclient "eventanalyzer/internal/adapters/clickhouse"
	"eventanalyzer/internal/adapters/config"
	"eventanalyzer/internal/adapters/kafka"
	pgclient "eventanalyzer/internal/adapters/postgres"
	redisclient "eventanalyzer/internal/adapters/redis"
	sqliteclient "eventanalyzer/internal/adapters/sqlite"
	"eventanalyzer/internal/api"
	"eventanalyzer/internal/api/health"
	"eventanalyzer/internal/domain/event"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/events"
	"eventanalyzer/internal/lock"
	"eventanalyzer/internal/metrics"
	"eventanalyzer/internal/ml"
	chrepo "eventanalyzer/internal/repository/clickhouse"
	"eventanalyzer/internal/services/analyzer"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker
	Metrics      *metrics.Metrics

	// Infrastructure Layer (Data stores); only the configured ones are set
	PG     *pgclient.Client
	SQLite *sqliteclient.Client
	CH     *chclient.Client
	Redis  *redisclient.Client

	Repos       *Repositories
	Adapters    *Adapters
	Services    *Services
	Application *Application

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	Events      event.Repository
	Models      model.Repository         // cached when Redis is enabled
	Predictions *chrepo.PredictionRepository // nil without ClickHouse
}

// Adapters groups all external adapters
type Adapters struct {
	KafkaProducer *kafka.Producer // nil without Kafka
	Publisher     *events.Publisher
	Locker        lock.Locker
}

// Services groups the domain services
type Services struct {
	Engines  *ml.Registry
	Analyzer *analyzer.Service
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Repos.Predictions != nil {
		if err := c.Repos.Predictions.EnsureSchema(c.Context); err != nil {
			return errors.Wrap(err, "failed to prepare prediction log")
		}
		c.Repos.Predictions.Start(c.Context)
		c.Log.Info("Prediction log writer started")
	}

	// Start HTTP server
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all other components to stop
	c.Cancel()

	c.Lifecycle.Shutdown(ShutdownDeps{
		WG:            c.WG,
		HTTPServer:    c.Application.HTTPServer,
		Predictions:   c.Repos.Predictions,
		KafkaProducer: c.Adapters.KafkaProducer,
		PG:            c.PG,
		SQLite:        c.SQLite,
		CH:            c.CH,
		Redis:         c.Redis,
		ErrorTracker:  c.ErrorTracker,
		Log:           c.Log,
	})
}

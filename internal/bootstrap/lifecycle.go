package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "eventanalyzer/internal/adapters/clickhouse"
	"eventanalyzer/internal/adapters/kafka"
	pgclient "eventanalyzer/internal/adapters/postgres"
	redisclient "eventanalyzer/internal/adapters/redis"
	sqliteclient "eventanalyzer/internal/adapters/sqlite"
	"eventanalyzer/internal/api"
	chrepo "eventanalyzer/internal/repository/clickhouse"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// ShutdownDeps lists the components to stop; nil entries are skipped
type ShutdownDeps struct {
	WG            *sync.WaitGroup
	HTTPServer    *api.Server
	Predictions   *chrepo.PredictionRepository
	KafkaProducer *kafka.Producer
	PG            *pgclient.Client
	SQLite        *sqliteclient.Client
	CH            *chclient.Client
	Redis         *redisclient.Client
	ErrorTracker  errors.Tracker
	Log           *logger.Logger
}

// Shutdown performs coordinated cleanup of all components in the correct order:
// 1. No new requests accepted (in-flight training finishes)
// 2. Buffered prediction logs flushed
// 3. Producer closed after the last publish
// 4. Logs and errors flushed
// 5. Database connections last (other components may need them)
func (l *Lifecycle) Shutdown(d ShutdownDeps) {
	log := d.Log
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop HTTP Server
	// ========================================
	log.Info("[1/6] Stopping HTTP server...")
	if d.HTTPServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 30*time.Second)
		if err := d.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}
	l.waitForGoroutines(d.WG, 5*time.Second, log)

	// ========================================
	// Step 2: Flush prediction log
	// ========================================
	log.Info("[2/6] Flushing prediction log...")
	if d.Predictions != nil {
		if err := d.Predictions.Stop(shutdownCtx); err != nil {
			log.Errorw("Prediction log flush failed", "error", err)
		}
	}

	// ========================================
	// Step 3: Close Kafka Producer
	// ========================================
	log.Info("[3/6] Closing Kafka producer...")
	if d.KafkaProducer != nil {
		if err := d.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		}
	}

	// ========================================
	// Step 4: Flush Error Tracker
	// ========================================
	log.Info("[4/6] Flushing error tracker...")
	l.flushErrorTracker(shutdownCtx, d.ErrorTracker, log)

	// ========================================
	// Step 5: Sync Logs
	// ========================================
	log.Info("[5/6] Syncing logs...")
	_ = logger.Sync()

	// ========================================
	// Step 6: Close Database Connections
	// ========================================
	log.Info("[6/6] Closing database connections...")
	l.closeDatabases(d, log)

	log.Info("Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	if wg == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warnw("Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	}
}

// closeDatabases closes all database connections
func (l *Lifecycle) closeDatabases(d ShutdownDeps, log *logger.Logger) {
	var dbErrors errors.MultiError

	if d.PG != nil {
		if err := d.PG.Close(); err != nil {
			dbErrors.Add(errors.Wrap(err, "postgres"))
		}
	}
	if d.SQLite != nil {
		if err := d.SQLite.Close(); err != nil {
			dbErrors.Add(errors.Wrap(err, "sqlite"))
		}
	}
	if d.CH != nil {
		if err := d.CH.Close(); err != nil {
			dbErrors.Add(errors.Wrap(err, "clickhouse"))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			dbErrors.Add(errors.Wrap(err, "redis"))
		}
	}

	if dbErrors.HasErrors() {
		log.Errorw("Database close errors", "error", dbErrors.ToError())
	}
}

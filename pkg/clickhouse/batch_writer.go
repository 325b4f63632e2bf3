// Package clickhouse buffers rows in memory and hands them to ClickHouse in batches.
package clickhouse

import (
	"context"
	"sync"
	"time"

	"eventanalyzer/pkg/logger"
)

// FlushFunc writes one batch, typically with PrepareBatch/Append/Send
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// BatchWriter accumulates rows and flushes them when the buffer fills up
// or when the oldest buffered row reaches MaxAge.
type BatchWriter[T any] struct {
	flush  FlushFunc[T]
	log    *logger.Logger
	mu     sync.Mutex
	buffer []T

	maxBatchSize int
	maxAge       time.Duration

	lastFlush time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
}

// BatchWriterConfig contains configuration for BatchWriter
type BatchWriterConfig[T any] struct {
	FlushFunc    FlushFunc[T]
	TableName    string
	MaxBatchSize int           // default 500
	MaxAge       time.Duration // default 5s
	Logger       *logger.Logger
}

// NewBatchWriter creates a stopped batch writer; call Start for the age-based flush loop
func NewBatchWriter[T any](cfg BatchWriterConfig[T]) *BatchWriter[T] {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}

	return &BatchWriter[T]{
		flush:        cfg.FlushFunc,
		log:          cfg.Logger.With("component", "batch_writer", "table", cfg.TableName),
		buffer:       make([]T, 0, cfg.MaxBatchSize),
		maxBatchSize: cfg.MaxBatchSize,
		maxAge:       cfg.MaxAge,
		lastFlush:    time.Now(),
		stopCh:       make(chan struct{}),
	}
}

// Start begins the background flush loop
func (bw *BatchWriter[T]) Start(ctx context.Context) {
	bw.mu.Lock()
	if bw.running {
		bw.mu.Unlock()
		return
	}
	bw.running = true
	bw.mu.Unlock()

	bw.wg.Add(1)
	go bw.loop(ctx)

	bw.log.Infof("batch writer started (max_batch=%d, max_age=%v)", bw.maxBatchSize, bw.maxAge)
}

// Add buffers one row, flushing synchronously when the buffer is full
func (bw *BatchWriter[T]) Add(ctx context.Context, item T) error {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, item)
	full := len(bw.buffer) >= bw.maxBatchSize
	bw.mu.Unlock()

	if full {
		return bw.Flush(ctx)
	}
	return nil
}

// Flush writes everything buffered so far
func (bw *BatchWriter[T]) Flush(ctx context.Context) error {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}
	batch := bw.buffer
	bw.buffer = make([]T, 0, bw.maxBatchSize)
	bw.lastFlush = time.Now()
	bw.mu.Unlock()

	start := time.Now()
	if err := bw.flush(ctx, batch); err != nil {
		bw.log.Errorf("failed to flush %d rows: %v (took %v)", len(batch), err, time.Since(start))
		return err
	}
	bw.log.Debugf("flushed %d rows (took %v)", len(batch), time.Since(start))
	return nil
}

func (bw *BatchWriter[T]) loop(ctx context.Context) {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.maxAge)
	defer ticker.Stop()

	final := func() {
		if err := bw.Flush(context.Background()); err != nil {
			bw.log.Errorf("final flush failed: %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			final()
			return
		case <-bw.stopCh:
			final()
			return
		case <-ticker.C:
			if err := bw.Flush(ctx); err != nil {
				bw.log.Warnf("periodic flush failed: %v", err)
			}
		}
	}
}

// Stop flushes what is left and waits for the loop to exit
func (bw *BatchWriter[T]) Stop(ctx context.Context) error {
	bw.mu.Lock()
	if !bw.running {
		bw.mu.Unlock()
		return bw.Flush(ctx)
	}
	bw.running = false
	bw.mu.Unlock()

	close(bw.stopCh)

	done := make(chan struct{})
	go func() {
		bw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bw.log.Warn("batch writer stop timed out")
		return ctx.Err()
	}
}

// BufferSize returns the number of rows waiting to be flushed
func (bw *BatchWriter[T]) BufferSize() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

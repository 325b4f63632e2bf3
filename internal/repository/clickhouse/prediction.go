// Package clickhouse stores prediction logs for analytics.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"eventanalyzer/internal/domain/prediction"
	"eventanalyzer/pkg/clickhouse"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// DefaultPredictionTable is where prediction logs land unless configured otherwise
const DefaultPredictionTable = "prediction_logs"

// Compile-time check
var _ prediction.Repository = (*PredictionRepository)(nil)

// PredictionRepository implements prediction.Repository for ClickHouse.
// Store is buffered; rows reach the table on the next batch flush.
type PredictionRepository struct {
	conn   driver.Conn
	table  string
	writer *clickhouse.BatchWriter[*prediction.Log]
}

// NewPredictionRepository creates a repository writing to table
func NewPredictionRepository(conn driver.Conn, table string, log *logger.Logger) *PredictionRepository {
	if table == "" {
		table = DefaultPredictionTable
	}
	repo := &PredictionRepository{conn: conn, table: table}
	repo.writer = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig[*prediction.Log]{
		FlushFunc:    repo.flushBatch,
		TableName:    table,
		MaxBatchSize: 200,
		MaxAge:       5 * time.Second,
		Logger:       log,
	})
	return repo
}

// EnsureSchema creates the log table if it does not exist
func (r *PredictionRepository) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			request_id String,
			algorithm LowCardinality(String),
			tag String,
			sequence_length UInt32,
			top_event LowCardinality(String),
			top_probability Float64,
			probabilities Map(String, Float64),
			skipped UInt32,
			latency_ms Float64,
			created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		ORDER BY (tag, created_at)`, r.table)

	if err := r.conn.Exec(ctx, ddl); err != nil {
		return errors.Wrap(err, "failed to create prediction log table")
	}
	return nil
}

// Start begins the background flush loop
func (r *PredictionRepository) Start(ctx context.Context) {
	r.writer.Start(ctx)
}

// Stop flushes buffered rows and stops the loop
func (r *PredictionRepository) Stop(ctx context.Context) error {
	return r.writer.Stop(ctx)
}

// Flush writes buffered rows now
func (r *PredictionRepository) Flush(ctx context.Context) error {
	return r.writer.Flush(ctx)
}

// Store buffers one prediction log
func (r *PredictionRepository) Store(ctx context.Context, l *prediction.Log) error {
	if l == nil {
		return errors.NewValidationError("log", "required", nil)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	return r.writer.Add(ctx, l)
}

// TopEvents counts winning events under tag since the given time, most frequent first
func (r *PredictionRepository) TopEvents(ctx context.Context, tag string, since time.Time) ([]prediction.EventCount, error) {
	query := fmt.Sprintf(`
		SELECT top_event, count() AS cnt, avg(top_probability) AS avg_prob
		FROM %s
		WHERE tag = ? AND created_at >= ?
		GROUP BY top_event
		ORDER BY cnt DESC, top_event`, r.table)

	var out []prediction.EventCount
	if err := r.conn.Select(ctx, &out, query, tag, since.UTC()); err != nil {
		return nil, errors.Wrap(err, "failed to query top events")
	}
	return out, nil
}

func (r *PredictionRepository) flushBatch(ctx context.Context, logs []*prediction.Log) error {
	batch, err := r.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", r.table))
	if err != nil {
		return errors.Wrap(err, "failed to prepare prediction batch")
	}
	for _, l := range logs {
		if err := batch.AppendStruct(l); err != nil {
			return errors.Wrap(err, "failed to append prediction log")
		}
	}
	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "failed to send prediction batch")
	}
	return nil
}

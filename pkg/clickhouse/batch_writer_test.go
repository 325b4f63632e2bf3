package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) flush(ctx context.Context, batch []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func newWriter(rec *recorder, size int, age time.Duration) *BatchWriter[string] {
	return NewBatchWriter(BatchWriterConfig[string]{
		FlushFunc:    rec.flush,
		TableName:    "test_table",
		MaxBatchSize: size,
		MaxAge:       age,
		Logger:       logger.Nop(),
	})
}

func TestBatchWriter_FlushOnMaxSize(t *testing.T) {
	rec := &recorder{}
	bw := newWriter(rec, 3, 10*time.Second)
	ctx := context.Background()

	require.NoError(t, bw.Add(ctx, "a"))
	require.NoError(t, bw.Add(ctx, "b"))
	assert.Equal(t, 0, rec.count())
	require.NoError(t, bw.Add(ctx, "c"))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, []string{"a", "b", "c"}, rec.batches[0])
	assert.Equal(t, 0, bw.BufferSize())
}

func TestBatchWriter_FlushOnTimer(t *testing.T) {
	rec := &recorder{}
	bw := newWriter(rec, 100, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	require.NoError(t, bw.Add(ctx, "a"))
	require.NoError(t, bw.Add(ctx, "b"))

	assert.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 10*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))
}

func TestBatchWriter_StopFlushesRemainder(t *testing.T) {
	rec := &recorder{}
	bw := newWriter(rec, 100, time.Hour)
	ctx := context.Background()

	bw.Start(ctx)
	require.NoError(t, bw.Add(ctx, "a"))
	require.NoError(t, bw.Stop(ctx))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, []string{"a"}, rec.batches[0])

	// stopping twice is harmless
	require.NoError(t, bw.Stop(ctx))
}

func TestBatchWriter_FlushError(t *testing.T) {
	boom := errors.New("boom")
	bw := NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc:    func(ctx context.Context, batch []int) error { return boom },
		MaxBatchSize: 1,
		Logger:       logger.Nop(),
	})

	err := bw.Add(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, bw.BufferSize())
}

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	redisadapter "eventanalyzer/internal/adapters/redis"
	"eventanalyzer/internal/testsupport"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// MockBackend is a mock implementation of RedisBackend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) ReleaseLock(ctx context.Context, key, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.clock = func() time.Time { return now }

	release, err := l.Acquire(ctx, "GMMHMM:t1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "GMMHMM:t1", time.Minute)
	assert.ErrorIs(t, err, errors.ErrConflict)

	other, err := l.Acquire(ctx, "GMMHMM:t2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release() // idempotent

	again, err := l.Acquire(ctx, "GMMHMM:t1", time.Minute)
	require.NoError(t, err)

	// an expired holder loses the lock, and its late release is a no-op
	now = now.Add(2 * time.Minute)
	takeover, err := l.Acquire(ctx, "GMMHMM:t1", time.Minute)
	require.NoError(t, err)
	again()
	_, err = l.Acquire(ctx, "GMMHMM:t1", time.Minute)
	assert.ErrorIs(t, err, errors.ErrConflict)
	takeover()
}

func TestRedis_Mock(t *testing.T) {
	ctx := context.Background()
	backend := new(MockBackend)
	l := NewRedis(backend, logger.Nop())

	backend.On("AcquireLock", ctx, "k", time.Minute).Return("tok", nil).Once()
	backend.On("ReleaseLock", mock.Anything, "k", "tok").Return(nil).Once()
	release, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	release()

	backend.On("AcquireLock", ctx, "k", time.Minute).Return("", nil).Once()
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, errors.ErrConflict)

	backend.On("AcquireLock", ctx, "k", time.Minute).Return("", assert.AnError).Once()
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, errors.ErrUnavailable)

	backend.AssertExpectations(t)
}

func TestRedis_Integration(t *testing.T) {
	client := redisadapter.Wrap(testsupport.NewRedisClient(t))
	ctx := context.Background()
	l := NewRedis(client, logger.Nop())

	release, err := l.Acquire(ctx, "train:GMMHMM:t1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "train:GMMHMM:t1", time.Minute)
	assert.ErrorIs(t, err, errors.ErrConflict)

	release()
	release2, err := l.Acquire(ctx, "train:GMMHMM:t1", time.Minute)
	require.NoError(t, err)
	release2()
}

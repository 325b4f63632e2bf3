// Package lock serializes training runs that write the same tag.
package lock

import (
	"context"
	"sync"
	"time"

	redisadapter "eventanalyzer/internal/adapters/redis"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// Locker hands out exclusive named locks. Acquire fails with errors.ErrConflict
// while someone else holds key; the returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisBackend is the part of the redis adapter the locker needs
type RedisBackend interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

var _ RedisBackend = (*redisadapter.Client)(nil)

// Redis is a Locker shared by every replica
type Redis struct {
	backend RedisBackend
	log     *logger.Logger
}

// NewRedis creates a Redis-backed locker
func NewRedis(backend RedisBackend, log *logger.Logger) *Redis {
	return &Redis{backend: backend, log: log.With("component", "lock")}
}

// Acquire implements Locker
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, err := r.backend.AcquireLock(ctx, key, ttl)
	if err != nil {
		return nil, errors.Join(errors.ErrUnavailable, errors.Wrapf(err, "acquire lock %s", key))
	}
	if token == "" {
		return nil, errors.Wrapf(errors.ErrConflict, "%s is locked", key)
	}

	return func() {
		// the caller's context may already be done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.backend.ReleaseLock(ctx, key, token); err != nil {
			r.log.Warnw("Failed to release lock", "key", key, "error", err)
		}
	}, nil
}

// Local is a Locker for a single process
type Local struct {
	mu    sync.Mutex
	held  map[string]time.Time // key -> expiry
	clock func() time.Time
}

// NewLocal creates an in-process locker
func NewLocal() *Local {
	return &Local{held: make(map[string]time.Time), clock: time.Now}
}

// Acquire implements Locker. Expired locks are taken over like in Redis.
func (l *Local) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, errors.Wrapf(errors.ErrConflict, "%s is locked", key)
	}
	exp := now.Add(ttl)
	l.held[key] = exp

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == exp {
				delete(l.held, key)
			}
		})
	}, nil
}

// Package redis decorates registry repositories with a Redis read-through cache.
package redis

import (
	"context"
	"fmt"
	"time"

	redisadapter "eventanalyzer/internal/adapters/redis"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// Cache is the subset of the redis adapter used here
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

var _ Cache = (*redisadapter.Client)(nil)

// Compile-time check
var _ model.Repository = (*CachedModelRepository)(nil)

// CachedModelRepository caches model reads in Redis.
// Writes go to the wrapped repository first, then drop the affected keys.
// Cache failures are logged and fall through to the wrapped repository.
type CachedModelRepository struct {
	next  model.Repository
	cache Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedModelRepository wraps next with a cache of the given TTL
func NewCachedModelRepository(next model.Repository, cache Cache, ttl time.Duration, log *logger.Logger) *CachedModelRepository {
	return &CachedModelRepository{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log.With("component", "model_cache"),
	}
}

// Records and tag listings live in separate namespaces. Tags come from callers and
// may contain ':', so tag and event are quoted.
func recordKey(key model.Key) string {
	return fmt.Sprintf("models:rec:%s:%q:%q", key.Algorithm, key.Tag, key.Event)
}

func tagKey(algorithm model.Algorithm, tag string) string {
	return fmt.Sprintf("models:tag:%s:%q", algorithm, tag)
}

// SetModel writes through and invalidates the record and its tag listing
func (r *CachedModelRepository) SetModel(ctx context.Context, rec *model.Record) (string, error) {
	id, err := r.next.SetModel(ctx, rec)
	if err != nil {
		return "", err
	}

	if err := r.cache.Delete(ctx, recordKey(rec.Key()), tagKey(rec.Algorithm, rec.Tag)); err != nil {
		r.log.Warnw("failed to invalidate model cache", "tag", rec.Tag, "event", rec.Event, "error", err)
	}
	return id, nil
}

// GetModel reads through the cache; misses are not cached
func (r *CachedModelRepository) GetModel(ctx context.Context, key model.Key) (*model.Record, error) {
	var cached model.Record
	err := r.cache.Get(ctx, recordKey(key), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, redisadapter.ErrCacheMiss) {
		r.log.Warnw("model cache read failed", "key", recordKey(key), "error", err)
	}

	rec, err := r.next.GetModel(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, recordKey(key), rec, r.ttl); err != nil {
		r.log.Warnw("model cache write failed", "key", recordKey(key), "error", err)
	}
	return rec, nil
}

// GetModelByTag reads through the cache; empty tags are not cached
func (r *CachedModelRepository) GetModelByTag(ctx context.Context, algorithm model.Algorithm, tag string) ([]*model.Record, error) {
	key := tagKey(algorithm, tag)

	var cached []*model.Record
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redisadapter.ErrCacheMiss) {
		r.log.Warnw("model cache read failed", "key", key, "error", err)
	}

	records, err := r.next.GetModelByTag(ctx, algorithm, tag)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if err := r.cache.Set(ctx, key, records, r.ttl); err != nil {
			r.log.Warnw("model cache write failed", "key", key, "error", err)
		}
	}
	return records, nil
}

// ListTags is not cached
func (r *CachedModelRepository) ListTags(ctx context.Context, algorithm model.Algorithm) ([]model.TagSummary, error) {
	return r.next.ListTags(ctx, algorithm)
}

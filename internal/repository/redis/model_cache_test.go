package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	redisadapter "eventanalyzer/internal/adapters/redis"
	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/repository/memory"
	"eventanalyzer/internal/testsupport"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// MockCache is a mock implementation of Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	return m.Called(ctx, key, dest).Error(0)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func record(tag, ev string) *model.Record {
	return &model.Record{
		Algorithm: model.GMMHMM,
		Tag:       tag,
		Event:     ev,
		Status:    model.StatusTrained,
		Params:    json.RawMessage(`{"n_components":2}`),
		StatusSets: catalog.StatusSets{
			Motion: []string{"walking"}, Sound: []string{"quiet"}, Location: []string{"home"},
		},
	}
}

func TestCacheKeysDoNotCollide(t *testing.T) {
	keys := map[string]string{
		"tag a:b":          tagKey(model.GMMHMM, "a:b"),
		"record a/b":       recordKey(model.Key{Algorithm: model.GMMHMM, Tag: "a", Event: "b"}),
		"record a:b/c":     recordKey(model.Key{Algorithm: model.GMMHMM, Tag: "a:b", Event: "c"}),
		"record a/b:c":     recordKey(model.Key{Algorithm: model.GMMHMM, Tag: "a", Event: "b:c"}),
		"tag a":            tagKey(model.GMMHMM, "a"),
		`tag with a quote`: tagKey(model.GMMHMM, `a":"b`),
	}
	seen := make(map[string]string, len(keys))
	for name, k := range keys {
		other, dup := seen[k]
		assert.False(t, dup, "%s and %s share key %s", name, other, k)
		seen[k] = name
	}
}

func TestCachedModelRepository_SetInvalidates(t *testing.T) {
	cache := new(MockCache)
	repo := NewCachedModelRepository(memory.NewModelRepository(), cache, time.Minute, logger.Nop())
	ctx := context.Background()

	cache.On("Delete", ctx, []string{`models:rec:GMMHMM:"t":"go_home"`, `models:tag:GMMHMM:"t"`}).Return(nil).Once()

	_, err := repo.SetModel(ctx, record("t", "go_home"))
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestCachedModelRepository_MissFillsCache(t *testing.T) {
	cache := new(MockCache)
	inner := memory.NewModelRepository()
	repo := NewCachedModelRepository(inner, cache, time.Minute, logger.Nop())
	ctx := context.Background()

	_, err := inner.SetModel(ctx, record("t", "go_home"))
	require.NoError(t, err)

	cache.On("Get", ctx, `models:rec:GMMHMM:"t":"go_home"`, mock.Anything).Return(redisadapter.ErrCacheMiss).Once()
	cache.On("Set", ctx, `models:rec:GMMHMM:"t":"go_home"`, mock.Anything, time.Minute).Return(nil).Once()

	rec, err := repo.GetModel(ctx, record("t", "go_home").Key())
	require.NoError(t, err)
	assert.Equal(t, "go_home", rec.Event)
	cache.AssertExpectations(t)
}

func TestCachedModelRepository_CacheDownFallsThrough(t *testing.T) {
	cache := new(MockCache)
	inner := memory.NewModelRepository()
	repo := NewCachedModelRepository(inner, cache, time.Minute, logger.Nop())
	ctx := context.Background()

	_, err := inner.SetModel(ctx, record("t", "go_home"))
	require.NoError(t, err)

	down := errors.New("connection refused")
	cache.On("Get", ctx, mock.Anything, mock.Anything).Return(down)
	cache.On("Set", ctx, mock.Anything, mock.Anything, mock.Anything).Return(down)

	records, err := repo.GetModelByTag(ctx, model.GMMHMM, "t")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCachedModelRepository_NotFoundNotCached(t *testing.T) {
	cache := new(MockCache)
	repo := NewCachedModelRepository(memory.NewModelRepository(), cache, time.Minute, logger.Nop())
	ctx := context.Background()

	cache.On("Get", ctx, mock.Anything, mock.Anything).Return(redisadapter.ErrCacheMiss)

	_, err := repo.GetModel(ctx, record("t", "go_home").Key())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedModelRepository_Redis(t *testing.T) {
	client := redisadapter.Wrap(testsupport.NewRedisClient(t))
	inner := memory.NewModelRepository()
	repo := NewCachedModelRepository(inner, client, time.Minute, logger.Nop())
	ctx := context.Background()

	_, err := repo.SetModel(ctx, record("t", "go_home"))
	require.NoError(t, err)

	first, err := repo.GetModelByTag(ctx, model.GMMHMM, "t")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// served from cache, then invalidated by the next write
	cached, err := repo.GetModelByTag(ctx, model.GMMHMM, "t")
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, cached[0].ID)
	assert.JSONEq(t, string(first[0].Params), string(cached[0].Params))

	_, err = repo.SetModel(ctx, record("t", "go_to_work"))
	require.NoError(t, err)
	after, err := repo.GetModelByTag(ctx, model.GMMHMM, "t")
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/event"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/pkg/errors"
)

func testRecord(tag, ev string) *model.Record {
	return &model.Record{
		Algorithm: model.GMMHMM,
		Tag:       tag,
		Event:     ev,
		Status:    model.StatusInitialized,
		Params:    json.RawMessage(`{}`),
		StatusSets: catalog.StatusSets{
			Motion: []string{"walking"}, Sound: []string{"quiet"}, Location: []string{"home"},
		},
	}
}

func TestModelRepository_OverwriteKeepsIdentity(t *testing.T) {
	repo := NewModelRepository()
	ctx := context.Background()

	id1, err := repo.SetModel(ctx, testRecord("t", "go_home"))
	require.NoError(t, err)
	first, err := repo.GetModel(ctx, model.Key{Algorithm: model.GMMHMM, Tag: "t", Event: "go_home"})
	require.NoError(t, err)

	rec := testRecord("t", "go_home")
	rec.Status = model.StatusTrained
	id2, err := repo.SetModel(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	second, err := repo.GetModel(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, model.StatusTrained, second.Status)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestModelRepository_ReturnsCopies(t *testing.T) {
	repo := NewModelRepository()
	ctx := context.Background()

	rec := testRecord("t", "go_home")
	_, err := repo.SetModel(ctx, rec)
	require.NoError(t, err)
	rec.StatusSets.Motion[0] = "mutated"

	got, err := repo.GetModel(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, "walking", got.StatusSets.Motion[0])

	got.Params = json.RawMessage(`{"x":1}`)
	again, err := repo.GetModel(ctx, rec.Key())
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(again.Params))
}

func TestModelRepository_ByTagAndListTags(t *testing.T) {
	repo := NewModelRepository()
	ctx := context.Background()

	for _, ev := range []string{"go_to_work", "go_home"} {
		_, err := repo.SetModel(ctx, testRecord("a", ev))
		require.NoError(t, err)
	}
	late := testRecord("b", "go_home")
	late.Timestamp = time.Now().Add(time.Hour)
	_, err := repo.SetModel(ctx, late)
	require.NoError(t, err)

	records, err := repo.GetModelByTag(ctx, model.GMMHMM, "a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "go_home", records[0].Event)

	tags, err := repo.ListTags(ctx, model.GMMHMM)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "b", tags[0].Tag)
	assert.Equal(t, 2, tags[1].Models)

	_, err = repo.GetModel(ctx, model.Key{Algorithm: model.GMMHMM, Tag: "zzz", Event: "go_home"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestEventRepository(t *testing.T) {
	repo := NewEventRepository()
	ctx := context.Background()

	_, err := repo.GetSystemStatusSets(ctx)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = repo.GetEventProbMap(ctx)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	sets := catalog.StatusSets{Motion: []string{"walking"}, Sound: []string{"quiet"}, Location: []string{"home"}}
	require.NoError(t, repo.ReplaceStatusSets(ctx, sets))

	require.NoError(t, repo.UpsertEvent(ctx, &event.Definition{Name: "b", Position: 1}))
	require.NoError(t, repo.UpsertEvent(ctx, &event.Definition{
		Name:       "a",
		Position:   0,
		InitParams: event.InitParams{model.GMMHMM: json.RawMessage(`{"n_mix":2}`)},
		Table:      event.Table{catalog.Motion: {Weights: []event.CategoryWeight{{Category: "walking", Weight: 1}}}},
	}))

	names, err := repo.GetEventList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	tables, err := repo.GetEventProbMap(ctx)
	require.NoError(t, err)
	tables["a"][catalog.Motion].Weights[0].Weight = 0

	again, err := repo.GetEventProbMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, again["a"][catalog.Motion].Weights[0].Weight)

	info, err := repo.GetEventInfo(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n_mix":2}`, string(info["a"][model.GMMHMM]))
}

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/pkg/errors"
)

func TestModelRepository_SetAndGet(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewModelRepository(db)
			ctx := context.Background()

			obs := catalog.ObservationSet{{
				{Motion: "walking", Sound: "quiet", Location: "street"},
				{Motion: "sitting", Sound: "talking", Location: "office"},
			}}
			rec := newRecord(WithStatus(model.StatusTrained), WithRawObservations(obs))

			id, err := repo.SetModel(ctx, rec)
			require.NoError(t, err)
			assert.NotEmpty(t, id)

			got, err := repo.GetModel(ctx, rec.Key())
			require.NoError(t, err)
			assert.Equal(t, id, got.ID)
			assert.Equal(t, model.StatusTrained, got.Status)
			assert.JSONEq(t, string(rec.Params), string(got.Params))
			assert.True(t, rec.StatusSets.Equal(got.StatusSets))
			assert.Equal(t, obs, got.RawObservations)
			assert.Equal(t, "fixture record", got.Description)
			assert.True(t, rec.Timestamp.Equal(got.Timestamp))
			assert.False(t, got.CreatedAt.IsZero())
		})
	}
}

func TestModelRepository_OverwriteKeepsIdentity(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewModelRepository(db)
			ctx := context.Background()

			first, err := repo.SetModel(ctx, newRecord())
			require.NoError(t, err)
			before, err := repo.GetModel(ctx, newRecord().Key())
			require.NoError(t, err)

			second, err := repo.SetModel(ctx, newRecord(
				WithStatus(model.StatusTrained),
				WithParams(`{"n_components":4}`),
				WithTimestamp(time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)),
			))
			require.NoError(t, err)
			assert.Equal(t, first, second)

			after, err := repo.GetModel(ctx, newRecord().Key())
			require.NoError(t, err)
			assert.Equal(t, model.StatusTrained, after.Status)
			assert.JSONEq(t, `{"n_components":4}`, string(after.Params))
			assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
			assert.Nil(t, after.RawObservations)
		})
	}
}

func TestModelRepository_GetMissing(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewModelRepository(db)

			_, err := repo.GetModel(context.Background(), model.Key{Algorithm: model.GMMHMM, Tag: "none", Event: "go_home"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrNotFound))
		})
	}
}

func TestModelRepository_GetModelByTag(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewModelRepository(db)
			ctx := context.Background()

			for _, ev := range []string{"go_to_work", "go_home", "go_to_class"} {
				_, err := repo.SetModel(ctx, newRecord(WithTag("daily"), WithEvent(ev)))
				require.NoError(t, err)
			}
			_, err := repo.SetModel(ctx, newRecord(WithTag("other"), WithEvent("go_home")))
			require.NoError(t, err)

			records, err := repo.GetModelByTag(ctx, model.GMMHMM, "daily")
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, "go_home", records[0].Event)
			assert.Equal(t, "go_to_class", records[1].Event)
			assert.Equal(t, "go_to_work", records[2].Event)

			empty, err := repo.GetModelByTag(ctx, model.GMMHMM, "missing")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestModelRepository_SetModelValidation(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewModelRepository(db)
			ctx := context.Background()

			_, err := repo.SetModel(ctx, newRecord(WithTag("")))
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))

			_, err = repo.SetModel(ctx, newRecord(WithStatus("unknown")))
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))

			_, err = repo.SetModel(ctx, newRecord(WithParams(`{broken`)))
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		})
	}
}

func TestModelRepository_ListTags(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewModelRepository(db)
			ctx := context.Background()

			older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			newer := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

			_, err := repo.SetModel(ctx, newRecord(WithTag("a"), WithEvent("go_home"), WithTimestamp(older)))
			require.NoError(t, err)
			_, err = repo.SetModel(ctx, newRecord(WithTag("a"), WithEvent("go_to_work"), WithStatus(model.StatusTrained), WithTimestamp(older)))
			require.NoError(t, err)
			_, err = repo.SetModel(ctx, newRecord(WithTag("b"), WithTimestamp(newer)))
			require.NoError(t, err)

			tags, err := repo.ListTags(ctx, model.GMMHMM)
			require.NoError(t, err)
			require.Len(t, tags, 2)

			assert.Equal(t, "b", tags[0].Tag)
			assert.Equal(t, 1, tags[0].Models)
			assert.True(t, newer.Equal(tags[0].UpdatedAt))

			assert.Equal(t, "a", tags[1].Tag)
			assert.Equal(t, 2, tags[1].Models)
			assert.Equal(t, 1, tags[1].Trained)
		})
	}
}

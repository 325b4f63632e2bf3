package analyzer

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/events"
	"eventanalyzer/internal/metrics"
	"eventanalyzer/internal/ml"
	"eventanalyzer/internal/ml/gmmhmm"
	"eventanalyzer/internal/repository/memory"
	"eventanalyzer/internal/seeds"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// MockPublisher is a mock implementation of EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishModel(ctx context.Context, e events.ModelEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockPublisher) PublishPrediction(ctx context.Context, e events.PredictionEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// MockModelRepository is a mock implementation of model.Repository
type MockModelRepository struct {
	mock.Mock
}

func (m *MockModelRepository) SetModel(ctx context.Context, r *model.Record) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

func (m *MockModelRepository) GetModel(ctx context.Context, key model.Key) (*model.Record, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Record), args.Error(1)
}

func (m *MockModelRepository) GetModelByTag(ctx context.Context, alg model.Algorithm, tag string) ([]*model.Record, error) {
	args := m.Called(ctx, alg, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Record), args.Error(1)
}

func (m *MockModelRepository) ListTags(ctx context.Context, alg model.Algorithm) ([]model.TagSummary, error) {
	args := m.Called(ctx, alg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TagSummary), args.Error(1)
}

type fixture struct {
	svc    *Service
	events *memory.EventRepository
	models model.Repository
}

func newFixture(t *testing.T, models model.Repository, publisher EventPublisher) *fixture {
	t.Helper()
	ctx := context.Background()

	evRepo := memory.NewEventRepository()
	require.NoError(t, seeds.Apply(ctx, evRepo, logger.Nop()))
	if models == nil {
		models = memory.NewModelRepository()
	}

	var seed uint64
	deps := Deps{
		Events:  evRepo,
		Models:  models,
		Engines: ml.NewRegistry(gmmhmm.New()),
		Metrics: metrics.New(),
		Log:     logger.Nop(),
		Clock:   func() time.Time { return testNow },
		Source: func() rand.Source {
			seed++
			return rand.NewPCG(7, seed)
		},
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	return &fixture{
		svc:    NewService(DefaultConfig(), deps),
		events: evRepo,
		models: models,
	}
}

func officeSequence(n int) catalog.Sequence {
	seq := make(catalog.Sequence, n)
	for i := range seq {
		seq[i] = catalog.Observation{Motion: "sitting", Sound: "study_quite_office", Location: "work_office"}
	}
	return seq
}

func key(tag, ev string) model.Key {
	return model.Key{Algorithm: model.GMMHMM, Tag: tag, Event: ev}
}

func TestRebuildTrainPredict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	for _, ev := range []string{"work_in_office", "go_home"} {
		id, err := f.svc.RebuildEvent(ctx, ev, "", "t0")
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	}

	initial, err := f.models.GetModel(ctx, key("t0", "work_in_office"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusInitialized, initial.Status)
	assert.Equal(t, "Initiation of A new GMMHMM Model for event work_in_office was made at 2024-03-01 12:00:00.000000", initial.Description)
	assert.True(t, initial.StatusSets.Equal(seeds.StatusSets()))

	for _, ev := range []string{"work_in_office", "go_home"} {
		_, err := f.svc.TrainEventRandomly(ctx, ev, "t0", "t1", "", 8, 20)
		require.NoError(t, err)
	}

	trained, err := f.models.GetModel(ctx, key("t1", "work_in_office"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusTrained, trained.Status)
	assert.Len(t, trained.RawObservations, 20)
	for _, seq := range trained.RawObservations {
		assert.Len(t, seq, 8)
	}
	assert.True(t, trained.StatusSets.Equal(initial.StatusSets))
	assert.Equal(t, "[source_tag=t0]Random train algo_type=GMMHMM for eventType=work_in_office, random train obs_len=8, obs_count=20", trained.Description)

	// the source tag is left untouched
	after, err := f.models.GetModel(ctx, key("t0", "work_in_office"))
	require.NoError(t, err)
	assert.Equal(t, initial.ID, after.ID)
	assert.Equal(t, model.StatusInitialized, after.Status)
	assert.JSONEq(t, string(initial.Params), string(after.Params))

	res, err := f.svc.PredictEvent(ctx, officeSequence(6), "t1", "")
	require.NoError(t, err)
	assert.Equal(t, "work_in_office", res.Event)
	assert.Len(t, res.Probabilities, 2)
	var sum float64
	for _, p := range res.Probabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Empty(t, res.Skipped)
}

func TestTrainEvent_WithObservations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	_, err := f.svc.RebuildEvent(ctx, "work_in_office", "", "t0")
	require.NoError(t, err)

	obs := catalog.ObservationSet{officeSequence(5), officeSequence(4)}
	obs[1][2].Location = "business_building"

	id, err := f.svc.TrainEvent(ctx, obs, "work_in_office", "t0", "", "")
	require.NoError(t, err)

	// empty target trains in place
	rec, err := f.models.GetModel(ctx, key("t0", "work_in_office"))
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, model.StatusTrained, rec.Status)
	assert.Equal(t, obs, rec.RawObservations)
	assert.Equal(t, "[source_tag=t0]Train model algo_type=GMMHMM for eventType=work_in_office", rec.Description)
}

func TestTrainEvent_UnknownCategoryWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	_, err := f.svc.RebuildEvent(ctx, "work_in_office", "", "t0")
	require.NoError(t, err)

	obs := catalog.ObservationSet{officeSequence(3)}
	obs[0][1].Sound = "volcano"

	_, err = f.svc.TrainEvent(ctx, obs, "work_in_office", "t0", "t1", "")
	assert.ErrorIs(t, err, errors.ErrUnknownCategory)

	_, err = f.models.GetModel(ctx, key("t1", "work_in_office"))
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMissingSourceWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo := new(MockModelRepository)
	f := newFixture(t, repo, nil)

	repo.On("GetModel", mock.Anything, key("t0", "go_home")).
		Return(nil, errors.Wrap(errors.ErrNotFound, "model")).Twice()

	_, err := f.svc.TrainEventRandomly(ctx, "go_home", "t0", "t1", "", 0, 0)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = f.svc.TrainEvent(ctx, catalog.ObservationSet{officeSequence(2)}, "go_home", "t0", "t1", "")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "SetModel", mock.Anything, mock.Anything)
}

func TestRebuildEvent_UnknownEvent(t *testing.T) {
	ctx := context.Background()
	repo := new(MockModelRepository)
	f := newFixture(t, repo, nil)

	_, err := f.svc.RebuildEvent(ctx, "skydiving", "", "t0")
	assert.ErrorIs(t, err, errors.ErrUnknownEvent)
	repo.AssertNotCalled(t, "SetModel", mock.Anything, mock.Anything)

	_, err = f.svc.RebuildEvent(ctx, "go_home", "LSTM", "t0")
	assert.ErrorIs(t, err, errors.ErrUnsupportedAlgorithm)

	_, err = f.svc.RebuildEvent(ctx, "", "", "t0")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRebuildEvent_OverwriteKeepsID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	first, err := f.svc.RebuildEvent(ctx, "go_home", "", "t0")
	require.NoError(t, err)
	_, err = f.svc.TrainEventRandomly(ctx, "go_home", "t0", "t0", "", 5, 5)
	require.NoError(t, err)

	second, err := f.svc.RebuildEvent(ctx, "go_home", "", "t0")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	rec, err := f.models.GetModel(ctx, key("t0", "go_home"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusInitialized, rec.Status)
	assert.Nil(t, rec.RawObservations)
}

func TestTrain_CatalogConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	_, err := f.svc.RebuildEvent(ctx, "go_home", "", "t0")
	require.NoError(t, err)

	sets := seeds.StatusSets()
	sets.Sound = append(sets.Sound, "stadium")
	require.NoError(t, f.events.ReplaceStatusSets(ctx, sets))

	_, err = f.svc.RebuildEvent(ctx, "go_home", "", "t2")
	require.NoError(t, err)

	_, err = f.svc.TrainEventRandomly(ctx, "go_home", "t0", "t2", "", 5, 5)
	assert.ErrorIs(t, err, errors.ErrCatalogConflict)

	rec, err := f.models.GetModel(ctx, key("t2", "go_home"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusInitialized, rec.Status)
	assert.True(t, rec.StatusSets.Equal(sets))
}

func TestInitAllAndTrainAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	res, err := f.svc.InitAll(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "init_model_1709294400", res.Tag)
	assert.Len(t, res.Succeeded, len(seeds.Events()))
	assert.Empty(t, res.Failed)

	// only part of the events exist under the partial tag
	for _, ev := range []string{"go_home", "work_in_office"} {
		_, err := f.svc.RebuildEvent(ctx, ev, "", "partial")
		require.NoError(t, err)
	}

	batch, err := f.svc.TrainAll(ctx, "partial", "", "")
	require.NoError(t, err)
	assert.Equal(t, "random_train", batch.Tag)
	assert.Len(t, batch.Succeeded, 2)
	assert.Len(t, batch.Failed, len(seeds.Events())-2)
	for ev, reason := range batch.Failed {
		assert.Contains(t, reason, "not_found", ev)
	}

	records, err := f.models.GetModelByTag(ctx, model.GMMHMM, "random_train")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	tags, err := f.svc.ListTags(ctx, "")
	require.NoError(t, err)
	assert.Len(t, tags, 3)
}

func TestPredictEvent_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	_, err := f.svc.PredictEvent(ctx, officeSequence(3), "nothing_here", "")
	assert.ErrorIs(t, err, errors.ErrNoModelsForTag)

	_, err = f.svc.PredictEvent(ctx, nil, "t0", "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	// initialized models can't score, so every candidate is skipped
	_, err = f.svc.RebuildEvent(ctx, "go_home", "", "t0")
	require.NoError(t, err)
	_, err = f.svc.PredictEvent(ctx, officeSequence(3), "t0", "")
	assert.ErrorIs(t, err, errors.ErrScoring)

	_, err = f.svc.TopEvents(ctx, "t0", testNow)
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}

func TestPublishesLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	pub := new(MockPublisher)
	f := newFixture(t, nil, pub)

	pub.On("PublishModel", mock.Anything, mock.MatchedBy(func(e events.ModelEvent) bool {
		return e.Type == events.TypeModelInitialized && e.Tag == "t0" && e.Event == "go_home"
	})).Return(nil).Once()
	pub.On("PublishModel", mock.Anything, mock.MatchedBy(func(e events.ModelEvent) bool {
		return e.Type == events.TypeModelRandomTrained && e.SourceTag == "t0" && e.Tag == "t1"
	})).Return(errors.ErrUnavailable).Once()
	pub.On("PublishPrediction", mock.Anything, mock.MatchedBy(func(e events.PredictionEvent) bool {
		return e.Tag == "t1" && e.Event == "go_home"
	})).Return(nil).Once()

	_, err := f.svc.RebuildEvent(ctx, "go_home", "", "t0")
	require.NoError(t, err)

	// a failed publish does not fail the write
	_, err = f.svc.TrainEventRandomly(ctx, "go_home", "t0", "t1", "", 5, 10)
	require.NoError(t, err)

	res, err := f.svc.PredictEvent(ctx, officeSequence(2), "t1", "")
	require.NoError(t, err)
	assert.Equal(t, "go_home", res.Event)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)

	pub.AssertExpectations(t)
}

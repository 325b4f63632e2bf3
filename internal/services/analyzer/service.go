// Package analyzer orchestrates the model lifecycle: initializing records from
// event defaults, training them on supplied or sampled observations and
// classifying sequences against every model of a tag.
package analyzer

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/event"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/domain/prediction"
	"eventanalyzer/internal/events"
	"eventanalyzer/internal/metrics"
	"eventanalyzer/internal/ml"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
	"eventanalyzer/pkg/requestid"
)

// EventPublisher receives lifecycle and prediction events after they happen
type EventPublisher interface {
	PublishModel(ctx context.Context, e events.ModelEvent) error
	PublishPrediction(ctx context.Context, e events.PredictionEvent) error
}

var _ EventPublisher = (*events.Publisher)(nil)

// Config holds the defaults applied when callers omit a value
type Config struct {
	DefaultAlgorithm    model.Algorithm
	TrainSequenceLength int
	TrainSequenceCount  int
	RandomTargetTag     string
	InitTagPrefix       string
	// RandomSeed makes sampling reproducible; 0 seeds every run from the runtime
	RandomSeed uint64
}

// DefaultConfig returns the defaults of the service
func DefaultConfig() Config {
	return Config{
		DefaultAlgorithm:    model.GMMHMM,
		TrainSequenceLength: 10,
		TrainSequenceCount:  30,
		RandomTargetTag:     "random_train",
		InitTagPrefix:       "init_model_",
	}
}

// Deps are the collaborators of the service. Publisher, Predictions and Metrics are optional.
type Deps struct {
	Events      event.Repository
	Models      model.Repository
	Engines     *ml.Registry
	Publisher   EventPublisher
	Predictions prediction.Repository
	Metrics     *metrics.Metrics
	Log         *logger.Logger
	Clock       func() time.Time
	// Source returns a fresh random source for one sampling run
	Source func() rand.Source
}

// Service implements the analyzer operations
type Service struct {
	cfg         Config
	events      event.Repository
	models      model.Repository
	engines     *ml.Registry
	publisher   EventPublisher
	predictions prediction.Repository
	metrics     *metrics.Metrics
	log         *logger.Logger
	now         func() time.Time
	source      func() rand.Source
	runs        atomic.Uint64
}

// NewService creates the analyzer service
func NewService(cfg Config, deps Deps) *Service {
	def := DefaultConfig()
	if cfg.DefaultAlgorithm == "" {
		cfg.DefaultAlgorithm = def.DefaultAlgorithm
	}
	if cfg.TrainSequenceLength <= 0 {
		cfg.TrainSequenceLength = def.TrainSequenceLength
	}
	if cfg.TrainSequenceCount <= 0 {
		cfg.TrainSequenceCount = def.TrainSequenceCount
	}
	if cfg.RandomTargetTag == "" {
		cfg.RandomTargetTag = def.RandomTargetTag
	}
	if cfg.InitTagPrefix == "" {
		cfg.InitTagPrefix = def.InitTagPrefix
	}

	log := deps.Log
	if log == nil {
		log = logger.Get()
	}

	s := &Service{
		cfg:         cfg,
		events:      deps.Events,
		models:      deps.Models,
		engines:     deps.Engines,
		publisher:   deps.Publisher,
		predictions: deps.Predictions,
		metrics:     deps.Metrics,
		log:         log.With("service", "analyzer"),
		now:         deps.Clock,
		source:      deps.Source,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.source == nil {
		s.source = s.defaultSource
	}
	return s
}

// Config returns the effective configuration
func (s *Service) Config() Config {
	return s.cfg
}

// Algorithms lists the algorithms with a registered engine
func (s *Service) Algorithms() []model.Algorithm {
	return s.engines.Algorithms()
}

// defaultSource derives a distinct PCG stream per run from RandomSeed,
// or a runtime-seeded one when no seed is configured
func (s *Service) defaultSource() rand.Source {
	run := s.runs.Add(1)
	if s.cfg.RandomSeed == 0 {
		return rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return rand.NewPCG(s.cfg.RandomSeed, run)
}

func (s *Service) algorithm(alg model.Algorithm) (model.Algorithm, ml.Engine, error) {
	if alg == "" {
		alg = s.cfg.DefaultAlgorithm
	}
	engine, err := s.engines.Get(alg)
	if err != nil {
		return "", nil, err
	}
	return alg, engine, nil
}

// BatchResult reports a per-event batch; one event failing never stops the others
type BatchResult struct {
	Tag       string            `json:"tag"`
	Succeeded map[string]string `json:"succeeded"`        // event -> record id
	Failed    map[string]string `json:"failed,omitempty"` // event -> reason
}

func newBatchResult(tag string) *BatchResult {
	return &BatchResult{
		Tag:       tag,
		Succeeded: make(map[string]string),
		Failed:    make(map[string]string),
	}
}

func (b *BatchResult) record(eventName, id string, err error) {
	if err != nil {
		b.Failed[eventName] = errors.Code(err) + ": " + err.Error()
		return
	}
	b.Succeeded[eventName] = id
}

// write persists rec and fans the result out to the optional sinks
func (s *Service) write(ctx context.Context, rec *model.Record, kind, sourceTag string) (string, error) {
	id, err := s.models.SetModel(ctx, rec)
	if err != nil {
		return "", err
	}

	s.log.WithContext(ctx).Infow("Model saved",
		"id", id,
		"kind", kind,
		"algorithm", rec.Algorithm,
		"tag", rec.Tag,
		"event", rec.Event,
		"status", rec.Status,
	)

	if s.publisher != nil {
		err := s.publisher.PublishModel(ctx, events.ModelEvent{
			Type:        kind,
			RequestID:   requestid.From(ctx),
			ModelID:     id,
			Algorithm:   rec.Algorithm.String(),
			Tag:         rec.Tag,
			Event:       rec.Event,
			Status:      rec.Status.String(),
			SourceTag:   sourceTag,
			Description: rec.Description,
			Timestamp:   rec.Timestamp,
		})
		if err != nil && s.metrics != nil {
			s.metrics.RecordPublishFailure("kafka")
		}
	}
	return id, nil
}

func (s *Service) observeTraining(kind string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordTraining(kind, time.Since(start), err)
	}
}

// requireNonEmpty returns a validation error for the first empty field
func requireNonEmpty(fields ...[2]string) error {
	for _, f := range fields {
		if f[1] == "" {
			return errors.NewValidationError(f[0], "required", nil)
		}
	}
	return nil
}

func cloneObservations(obs catalog.ObservationSet) catalog.ObservationSet {
	out := make(catalog.ObservationSet, len(obs))
	for i, seq := range obs {
		out[i] = append(catalog.Sequence(nil), seq...)
	}
	return out
}

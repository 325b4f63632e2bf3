package analyzer

import (
	"context"
	"fmt"
	"time"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/event"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/events"
	"eventanalyzer/internal/ml"
	"eventanalyzer/internal/ml/sampler"
	"eventanalyzer/pkg/errors"
)

// TrainEvent fits the source record of eventName on observations and writes the
// result under targetTag (sourceTag when empty). The source record's frozen
// catalog encodes the observations and is carried over to the new record.
func (s *Service) TrainEvent(ctx context.Context, observations catalog.ObservationSet, eventName, sourceTag, targetTag string, alg model.Algorithm) (id string, err error) {
	if err := requireNonEmpty([2]string{"event_type", eventName}, [2]string{"source_tag", sourceTag}); err != nil {
		return "", err
	}
	if len(observations) == 0 {
		return "", errors.NewValidationError("obs", "must contain at least one sequence", nil)
	}
	if targetTag == "" {
		targetTag = sourceTag
	}

	start := time.Now()
	defer func() { s.observeTraining(events.TypeModelTrained, start, err) }()

	alg, engine, err := s.algorithm(alg)
	if err != nil {
		return "", err
	}
	src, err := s.models.GetModel(ctx, model.Key{Algorithm: alg, Tag: sourceTag, Event: eventName})
	if err != nil {
		return "", err
	}

	description := fmt.Sprintf("[source_tag=%s]Train model algo_type=%s for eventType=%s", sourceTag, alg, eventName)
	return s.train(ctx, engine, src, cloneObservations(observations), targetTag, description, events.TypeModelTrained)
}

// TrainEventRandomly samples training data for eventName from its probability
// table, using the source record's frozen catalog, and trains on it.
// Non-positive length or count fall back to the configured defaults.
func (s *Service) TrainEventRandomly(ctx context.Context, eventName, sourceTag, targetTag string, alg model.Algorithm, length, count int) (id string, err error) {
	if err := requireNonEmpty([2]string{"event_type", eventName}, [2]string{"source_tag", sourceTag}); err != nil {
		return "", err
	}

	start := time.Now()
	defer func() { s.observeTraining(events.TypeModelRandomTrained, start, err) }()

	alg, engine, err := s.algorithm(alg)
	if err != nil {
		return "", err
	}
	tables, err := s.events.GetEventProbMap(ctx)
	if err != nil {
		return "", err
	}
	return s.trainRandomly(ctx, engine, alg, eventName, sourceTag, s.targetOrDefault(targetTag), tables, length, count)
}

// TrainAll randomly trains every known event from sourceTag into targetTag
func (s *Service) TrainAll(ctx context.Context, sourceTag, targetTag string, alg model.Algorithm) (*BatchResult, error) {
	if err := requireNonEmpty([2]string{"source_tag", sourceTag}); err != nil {
		return nil, err
	}
	alg, engine, err := s.algorithm(alg)
	if err != nil {
		return nil, err
	}
	targetTag = s.targetOrDefault(targetTag)

	names, err := s.events.GetEventList(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := s.events.GetEventProbMap(ctx)
	if err != nil {
		return nil, err
	}

	res := newBatchResult(targetTag)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		start := time.Now()
		id, err := s.trainRandomly(ctx, engine, alg, name, sourceTag, targetTag, tables, 0, 0)
		s.observeTraining(events.TypeModelRandomTrained, start, err)
		if err != nil {
			s.log.WithContext(ctx).Warnw("Failed to train event", "event", name, "source_tag", sourceTag, "error", err)
		}
		res.record(name, id, err)
	}

	s.log.WithContext(ctx).Infow("Trained tag",
		"source_tag", sourceTag,
		"target_tag", targetTag,
		"algorithm", alg,
		"succeeded", len(res.Succeeded),
		"failed", len(res.Failed),
	)
	return res, nil
}

func (s *Service) targetOrDefault(tag string) string {
	if tag == "" {
		return s.cfg.RandomTargetTag
	}
	return tag
}

func (s *Service) trainRandomly(ctx context.Context, engine ml.Engine, alg model.Algorithm, eventName, sourceTag, targetTag string,
	tables event.ProbabilityTable, length, count int) (string, error) {
	if length <= 0 {
		length = s.cfg.TrainSequenceLength
	}
	if count <= 0 {
		count = s.cfg.TrainSequenceCount
	}

	src, err := s.models.GetModel(ctx, model.Key{Algorithm: alg, Tag: sourceTag, Event: eventName})
	if err != nil {
		return "", err
	}

	smp := sampler.New(src.StatusSets, tables, s.source())
	obs, err := smp.SampleObservationSet(eventName, length, count)
	if err != nil {
		return "", err
	}

	description := fmt.Sprintf("[source_tag=%s]Random train algo_type=%s for eventType=%s, random train obs_len=%d, obs_count=%d",
		sourceTag, alg, eventName, length, count)
	return s.train(ctx, engine, src, obs, targetTag, description, events.TypeModelRandomTrained)
}

// train encodes obs with src's catalog, fits, and writes a trained record.
// Nothing is written unless the fit succeeds.
func (s *Service) train(ctx context.Context, engine ml.Engine, src *model.Record, obs catalog.ObservationSet,
	targetTag, description, kind string) (string, error) {
	encoded, err := src.StatusSets.EncodeSet(obs)
	if err != nil {
		return "", err
	}

	target := model.Key{Algorithm: src.Algorithm, Tag: targetTag, Event: src.Event}
	if target != src.Key() {
		existing, err := s.models.GetModel(ctx, target)
		switch {
		case err == nil:
			if !existing.StatusSets.Equal(src.StatusSets) {
				return "", errors.Wrapf(errors.ErrCatalogConflict,
					"%s/%s/%s was frozen under a different catalog than %s", target.Algorithm, target.Tag, target.Event, src.Tag)
			}
		case !errors.Is(err, errors.ErrNotFound):
			return "", err
		}
	}

	params, report, err := engine.Fit(ctx, ml.Dataset{
		Sequences:   encoded,
		Cardinality: src.StatusSets.Cardinality(),
	}, src.Params)
	if err != nil {
		return "", err
	}
	if s.metrics != nil && report != nil {
		s.metrics.RecordFit(src.Algorithm.String(), report.Iterations, report.Converged)
	}
	if report != nil {
		s.log.WithContext(ctx).Debugw("Fit finished",
			"event", src.Event,
			"iterations", report.Iterations,
			"log_likelihood", report.LogLikelihood,
			"converged", report.Converged,
		)
	}

	rec := &model.Record{
		Algorithm:       src.Algorithm,
		Tag:             targetTag,
		Event:           src.Event,
		Status:          model.StatusTrained,
		Params:          params,
		StatusSets:      src.StatusSets.Clone(),
		Description:     description,
		RawObservations: obs,
		Timestamp:       s.now(),
	}
	return s.write(ctx, rec, kind, src.Tag)
}

package analyzer

import (
	"context"
	"time"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/domain/prediction"
	"eventanalyzer/internal/events"
	"eventanalyzer/internal/ml/classifier"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/requestid"
)

// PredictEvent classifies seq against every model of alg stored under tag
func (s *Service) PredictEvent(ctx context.Context, seq catalog.Sequence, tag string, alg model.Algorithm) (res *classifier.Result, err error) {
	if err := requireNonEmpty([2]string{"tag", tag}); err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, errors.NewValidationError("seq", "must contain at least one observation", nil)
	}

	start := time.Now()
	alg, engine, err := s.algorithm(alg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if s.metrics != nil {
			skipped := 0
			if res != nil {
				skipped = len(res.Skipped)
			}
			s.metrics.RecordPrediction(alg.String(), skipped, err)
		}
	}()

	records, err := s.models.GetModelByTag(ctx, alg, tag)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(errors.ErrNoModelsForTag, "tag=%s algorithm=%s", tag, alg)
	}

	candidates := make(map[string]classifier.Candidate, len(records))
	for _, r := range records {
		candidates[r.Event] = classifier.Candidate{StatusSets: r.StatusSets, Params: r.Params}
	}

	res, err = classifier.New(engine).Predict(seq, candidates)
	if err != nil {
		return nil, err
	}

	log := s.log.WithContext(ctx)
	for ev, reason := range res.Skipped {
		log.Warnw("Model skipped during prediction", "tag", tag, "event", ev, "reason", reason)
	}
	log.Infow("Predicted event",
		"tag", tag,
		"algorithm", alg,
		"event", res.Event,
		"confidence", res.Confidence,
		"candidates", len(candidates),
	)

	s.report(ctx, alg, tag, len(seq), res, time.Since(start))
	return res, nil
}

// report hands a finished prediction to the analytics log and the event stream.
// Failures there never fail the prediction.
func (s *Service) report(ctx context.Context, alg model.Algorithm, tag string, seqLen int, res *classifier.Result, latency time.Duration) {
	now := s.now()
	if s.predictions != nil {
		err := s.predictions.Store(ctx, &prediction.Log{
			RequestID:      requestid.From(ctx),
			Algorithm:      alg.String(),
			Tag:            tag,
			SequenceLength: uint32(seqLen),
			TopEvent:       res.Event,
			TopProbability: res.Confidence,
			Probabilities:  res.Probabilities,
			Skipped:        uint32(len(res.Skipped)),
			LatencyMs:      float64(latency.Microseconds()) / 1000,
			CreatedAt:      now.UTC(),
		})
		if err != nil {
			s.log.WithContext(ctx).Warnw("Failed to store prediction log", "error", err)
			if s.metrics != nil {
				s.metrics.RecordPublishFailure("clickhouse")
			}
		}
	}

	if s.publisher != nil {
		skipped := make([]string, 0, len(res.Skipped))
		for ev := range res.Skipped {
			skipped = append(skipped, ev)
		}
		err := s.publisher.PublishPrediction(ctx, events.PredictionEvent{
			RequestID:     requestid.From(ctx),
			Algorithm:     alg.String(),
			Tag:           tag,
			Event:         res.Event,
			Confidence:    res.Confidence,
			Probabilities: res.Probabilities,
			Skipped:       skipped,
			Timestamp:     now,
		})
		if err != nil && s.metrics != nil {
			s.metrics.RecordPublishFailure("kafka")
		}
	}
}

// TopEvents summarizes recent predictions under tag; requires the analytics log
func (s *Service) TopEvents(ctx context.Context, tag string, since time.Time) ([]prediction.EventCount, error) {
	if s.predictions == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "prediction analytics are not configured")
	}
	if err := requireNonEmpty([2]string{"tag", tag}); err != nil {
		return nil, err
	}
	return s.predictions.TopEvents(ctx, tag, since)
}

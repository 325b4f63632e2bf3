package analyzer

import (
	"context"
	"fmt"
	"time"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/event"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/events"
	"eventanalyzer/pkg/errors"
)

// descriptionTime renders timestamps in record descriptions
const descriptionTime = "2006-01-02 15:04:05.000000"

// RebuildEvent writes a fresh initialized record for eventName under tag,
// using the event's default parameters and the current catalog
func (s *Service) RebuildEvent(ctx context.Context, eventName string, alg model.Algorithm, tag string) (string, error) {
	if err := requireNonEmpty([2]string{"event_type", eventName}, [2]string{"tag", tag}); err != nil {
		return "", err
	}
	alg, _, err := s.algorithm(alg)
	if err != nil {
		return "", err
	}

	info, err := s.events.GetEventInfo(ctx)
	if err != nil {
		return "", err
	}
	sets, err := s.events.GetSystemStatusSets(ctx)
	if err != nil {
		return "", err
	}

	return s.rebuild(ctx, eventName, alg, tag, info, sets)
}

func (s *Service) rebuild(ctx context.Context, eventName string, alg model.Algorithm, tag string,
	info map[string]event.InitParams, sets catalog.StatusSets) (id string, err error) {
	start := time.Now()
	defer func() { s.observeTraining(events.TypeModelInitialized, start, err) }()

	params, ok := info[eventName]
	if !ok {
		return "", errors.Wrapf(errors.ErrUnknownEvent, "event %q", eventName)
	}
	initParams, ok := params[alg]
	if !ok {
		return "", errors.Wrapf(errors.ErrUnknownEvent, "event %q has no init params for %s", eventName, alg)
	}

	now := s.now()
	rec := &model.Record{
		Algorithm:   alg,
		Tag:         tag,
		Event:       eventName,
		Status:      model.StatusInitialized,
		Params:      initParams,
		StatusSets:  sets.Clone(),
		Description: fmt.Sprintf("Initiation of A new %s Model for event %s was made at %s", alg, eventName, now.Format(descriptionTime)),
		Timestamp:   now,
	}
	return s.write(ctx, rec, events.TypeModelInitialized, "")
}

// InitAll rebuilds every known event under tag. An empty tag becomes
// InitTagPrefix followed by the current unix time.
func (s *Service) InitAll(ctx context.Context, tag string, alg model.Algorithm) (*BatchResult, error) {
	if tag == "" {
		tag = fmt.Sprintf("%s%d", s.cfg.InitTagPrefix, s.now().Unix())
	}
	alg, _, err := s.algorithm(alg)
	if err != nil {
		return nil, err
	}

	names, err := s.events.GetEventList(ctx)
	if err != nil {
		return nil, err
	}
	info, err := s.events.GetEventInfo(ctx)
	if err != nil {
		return nil, err
	}
	sets, err := s.events.GetSystemStatusSets(ctx)
	if err != nil {
		return nil, err
	}

	res := newBatchResult(tag)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		id, err := s.rebuild(ctx, name, alg, tag, info, sets)
		if err != nil {
			s.log.WithContext(ctx).Warnw("Failed to initialize event", "event", name, "tag", tag, "error", err)
		}
		res.record(name, id, err)
	}

	s.log.WithContext(ctx).Infow("Initialized tag",
		"tag", tag,
		"algorithm", alg,
		"succeeded", len(res.Succeeded),
		"failed", len(res.Failed),
	)
	return res, nil
}

// ListTags summarizes the tags holding records of alg
func (s *Service) ListTags(ctx context.Context, alg model.Algorithm) ([]model.TagSummary, error) {
	alg, _, err := s.algorithm(alg)
	if err != nil {
		return nil, err
	}
	return s.models.ListTags(ctx, alg)
}

// GetModel returns one record
func (s *Service) GetModel(ctx context.Context, alg model.Algorithm, tag, eventName string) (*model.Record, error) {
	if err := requireNonEmpty([2]string{"tag", tag}, [2]string{"event_type", eventName}); err != nil {
		return nil, err
	}
	alg, _, err := s.algorithm(alg)
	if err != nil {
		return nil, err
	}
	return s.models.GetModel(ctx, model.Key{Algorithm: alg, Tag: tag, Event: eventName})
}

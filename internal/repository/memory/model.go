// Package memory keeps the registry in process memory, for tests and
// single-process runs without a database.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventanalyzer/internal/domain/model"
	"eventanalyzer/pkg/errors"
)

var _ model.Repository = (*ModelRepository)(nil)

// ModelRepository stores model records in a map keyed by model.Key.
// Records are cloned on the way in and out.
type ModelRepository struct {
	mu      sync.RWMutex
	records map[model.Key]*model.Record
	now     func() time.Time
}

// NewModelRepository creates an empty repository
func NewModelRepository() *ModelRepository {
	return &ModelRepository{
		records: make(map[model.Key]*model.Record),
		now:     time.Now,
	}
}

// SetModel inserts or overwrites the record at rec.Key()
func (r *ModelRepository) SetModel(ctx context.Context, rec *model.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if rec == nil {
		return "", errors.NewValidationError("record", "required", nil)
	}
	if rec.Algorithm == "" || rec.Tag == "" || rec.Event == "" {
		return "", errors.NewValidationError("key", "algorithm, tag and event are required", rec.Key())
	}
	if !rec.Status.Valid() {
		return "", errors.NewValidationError("status", "unknown status", rec.Status)
	}
	if !json.Valid(rec.Params) {
		return "", errors.NewValidationError("params", "must be a JSON document", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	stored := rec.Clone()
	if stored.Timestamp.IsZero() {
		stored.Timestamp = now
	}
	if prev, ok := r.records[rec.Key()]; ok {
		stored.ID = prev.ID
		stored.CreatedAt = prev.CreatedAt
	} else {
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
	}
	r.records[rec.Key()] = stored

	return stored.ID, nil
}

// GetModel returns a copy of the record at key
func (r *ModelRepository) GetModel(ctx context.Context, key model.Key) (*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "model %s/%s/%s", key.Algorithm, key.Tag, key.Event)
	}
	return rec.Clone(), nil
}

// GetModelByTag returns copies of the records under tag, ordered by event
func (r *ModelRepository) GetModelByTag(ctx context.Context, algorithm model.Algorithm, tag string) ([]*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Record, 0)
	for key, rec := range r.records {
		if key.Algorithm == algorithm && key.Tag == tag {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Event < out[j].Event })
	return out, nil
}

// ListTags summarizes tags newest first
func (r *ModelRepository) ListTags(ctx context.Context, algorithm model.Algorithm) ([]model.TagSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	byTag := make(map[string]*model.TagSummary)
	for key, rec := range r.records {
		if key.Algorithm != algorithm {
			continue
		}
		s, ok := byTag[key.Tag]
		if !ok {
			s = &model.TagSummary{Algorithm: algorithm, Tag: key.Tag}
			byTag[key.Tag] = s
		}
		s.Models++
		if rec.Status == model.StatusTrained {
			s.Trained++
		}
		if rec.Timestamp.After(s.UpdatedAt) {
			s.UpdatedAt = rec.Timestamp
		}
	}

	out := make([]model.TagSummary, 0, len(byTag))
	for _, s := range byTag {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

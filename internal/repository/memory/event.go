package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/event"
	"eventanalyzer/pkg/errors"
)

var _ event.Repository = (*EventRepository)(nil)

// EventRepository holds the catalog and event definitions in memory
type EventRepository struct {
	mu     sync.RWMutex
	sets   *catalog.StatusSets
	events map[string]*event.Definition
	now    func() time.Time
}

// NewEventRepository creates an empty repository; seed it with seeds.Apply
func NewEventRepository() *EventRepository {
	return &EventRepository{
		events: make(map[string]*event.Definition),
		now:    time.Now,
	}
}

// ordered returns definitions by position then name; caller holds the lock
func (r *EventRepository) ordered() ([]*event.Definition, error) {
	if len(r.events) == 0 {
		return nil, errors.Wrap(errors.ErrNotFound, "no events configured, run the seeder")
	}
	defs := make([]*event.Definition, 0, len(r.events))
	for _, d := range r.events {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Position != defs[j].Position {
			return defs[i].Position < defs[j].Position
		}
		return defs[i].Name < defs[j].Name
	})
	return defs, nil
}

// GetEventInfo returns init parameters per event and algorithm
func (r *EventRepository) GetEventInfo(ctx context.Context) (map[string]event.InitParams, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs, err := r.ordered()
	if err != nil {
		return nil, err
	}
	info := make(map[string]event.InitParams, len(defs))
	for _, d := range defs {
		params := make(event.InitParams, len(d.InitParams))
		for alg, raw := range d.InitParams {
			params[alg] = append(json.RawMessage(nil), raw...)
		}
		info[d.Name] = params
	}
	return info, nil
}

// GetSystemStatusSets returns a copy of the current catalog
func (r *EventRepository) GetSystemStatusSets(ctx context.Context) (catalog.StatusSets, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.sets == nil {
		return catalog.StatusSets{}, errors.Wrap(errors.ErrNotFound, "status catalog is empty, run the seeder")
	}
	return r.sets.Clone(), nil
}

// GetEventList returns event labels in catalog order
func (r *EventRepository) GetEventList(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs, err := r.ordered()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names, nil
}

// GetEventProbMap returns a copy of every event's sampling table
func (r *EventRepository) GetEventProbMap(ctx context.Context) (event.ProbabilityTable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs, err := r.ordered()
	if err != nil {
		return nil, err
	}
	tables := make(event.ProbabilityTable, len(defs))
	for _, d := range defs {
		tables[d.Name] = cloneTable(d.Table)
	}
	return tables, nil
}

// ReplaceStatusSets swaps the catalog
func (r *EventRepository) ReplaceStatusSets(ctx context.Context, sets catalog.StatusSets) error {
	if err := sets.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := sets.Clone()
	r.sets = &c
	return nil
}

// UpsertEvent creates or replaces an event definition
func (r *EventRepository) UpsertEvent(ctx context.Context, d *event.Definition) error {
	if d == nil || d.Name == "" {
		return errors.NewValidationError("name", "required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *d
	stored.Table = cloneTable(d.Table)
	stored.InitParams = make(event.InitParams, len(d.InitParams))
	for alg, raw := range d.InitParams {
		stored.InitParams[alg] = append(json.RawMessage(nil), raw...)
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = r.now().UTC()
	}
	r.events[d.Name] = &stored
	return nil
}

func cloneTable(t event.Table) event.Table {
	out := make(event.Table, len(t))
	for m, dist := range t {
		out[m] = event.Distribution{
			Weights:   append([]event.CategoryWeight(nil), dist.Weights...),
			Remainder: dist.Remainder,
		}
	}
	return out
}

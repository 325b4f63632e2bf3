package event

import (
	"context"

	"eventanalyzer/internal/domain/catalog"
)

// Repository defines read access to the event configuration plus the writes used for seeding
type Repository interface {
	// GetEventInfo returns init parameters per event and algorithm
	GetEventInfo(ctx context.Context) (map[string]InitParams, error)
	// GetSystemStatusSets returns the current catalog snapshot
	GetSystemStatusSets(ctx context.Context) (catalog.StatusSets, error)
	// GetEventList returns event labels in catalog order
	GetEventList(ctx context.Context) ([]string, error)
	// GetEventProbMap returns the sampling table of every event
	GetEventProbMap(ctx context.Context) (ProbabilityTable, error)

	// ReplaceStatusSets swaps the current catalog; existing records keep their frozen copies
	ReplaceStatusSets(ctx context.Context, sets catalog.StatusSets) error
	// UpsertEvent creates or replaces an event definition
	UpsertEvent(ctx context.Context, d *Definition) error
}

package postgres

import (
	"encoding/json"
	"time"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
)

// RecordOption customizes a test record
type RecordOption func(*model.Record)

func WithTag(tag string) RecordOption {
	return func(r *model.Record) { r.Tag = tag }
}

func WithEvent(event string) RecordOption {
	return func(r *model.Record) { r.Event = event }
}

func WithStatus(s model.Status) RecordOption {
	return func(r *model.Record) { r.Status = s }
}

func WithParams(raw string) RecordOption {
	return func(r *model.Record) { r.Params = json.RawMessage(raw) }
}

func WithStatusSets(sets catalog.StatusSets) RecordOption {
	return func(r *model.Record) { r.StatusSets = sets }
}

func WithRawObservations(obs catalog.ObservationSet) RecordOption {
	return func(r *model.Record) { r.RawObservations = obs }
}

func WithTimestamp(ts time.Time) RecordOption {
	return func(r *model.Record) { r.Timestamp = ts }
}

func testStatusSets() catalog.StatusSets {
	return catalog.StatusSets{
		Motion:   []string{"sitting", "walking", "running"},
		Sound:    []string{"quiet", "talking"},
		Location: []string{"home", "office", "street"},
	}
}

func newRecord(opts ...RecordOption) *model.Record {
	r := &model.Record{
		Algorithm:   model.GMMHMM,
		Tag:         "fixture",
		Event:       "go_to_work",
		Status:      model.StatusInitialized,
		Params:      json.RawMessage(`{"n_components":3}`),
		StatusSets:  testStatusSets(),
		Description: "fixture record",
		Timestamp:   time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

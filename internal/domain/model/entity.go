package model

import (
	"encoding/json"
	"time"

	"eventanalyzer/internal/domain/catalog"
)

// Algorithm names a model family with a registered engine
type Algorithm string

// GMMHMM is the Gaussian-mixture hidden Markov model family
const GMMHMM Algorithm = "GMMHMM"

// String returns string representation
func (a Algorithm) String() string {
	return string(a)
}

// Status is the lifecycle state of a model record
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusTrained     Status = "trained"
)

// Valid checks if status is known
func (s Status) Valid() bool {
	switch s {
	case StatusInitialized, StatusTrained:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// Key identifies a record; at most one record exists per key
type Key struct {
	Algorithm Algorithm `json:"algorithm"`
	Tag       string    `json:"tag"`
	Event     string    `json:"event"`
}

// Record is a persisted model version for one (algorithm, tag, event)
type Record struct {
	ID          string             `json:"id"`
	Algorithm   Algorithm          `json:"algorithm"`
	Tag         string             `json:"tag"`
	Event       string             `json:"event"`
	Status      Status             `json:"status"`
	Params      json.RawMessage    `json:"params"`      // opaque to everything but the algorithm's engine
	StatusSets  catalog.StatusSets `json:"status_sets"` // frozen at write time
	Description string             `json:"description"`
	// Training data that produced Params; nil for initialized records
	RawObservations catalog.ObservationSet `json:"raw_observations,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	CreatedAt       time.Time              `json:"created_at"`
}

// Key returns the record's identity key
func (r *Record) Key() Key {
	return Key{Algorithm: r.Algorithm, Tag: r.Tag, Event: r.Event}
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Params = append(json.RawMessage(nil), r.Params...)
	c.StatusSets = r.StatusSets.Clone()
	if r.RawObservations != nil {
		c.RawObservations = make(catalog.ObservationSet, len(r.RawObservations))
		for i, seq := range r.RawObservations {
			c.RawObservations[i] = append(catalog.Sequence(nil), seq...)
		}
	}
	return &c
}

// TagSummary describes the contents of one tag
type TagSummary struct {
	Algorithm Algorithm `db:"algorithm" json:"algorithm"`
	Tag       string    `db:"tag" json:"tag"`
	Models    int       `db:"models" json:"models"`
	Trained   int       `db:"trained" json:"trained"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

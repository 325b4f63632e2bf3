package event

import (
	"encoding/json"
	"math"
	"time"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/pkg/errors"
)

// RemainderPolicy says what happens to the mass a distribution leaves unassigned
type RemainderPolicy string

const (
	// RemainderUniform spreads 1-Σweights evenly over every catalog category not listed
	RemainderUniform RemainderPolicy = "uniform"
	// RemainderNone drops the leftover mass; listed weights are renormalized
	RemainderNone RemainderPolicy = "none"
)

// Valid checks if policy is known; the zero value means uniform
func (p RemainderPolicy) Valid() bool {
	switch p {
	case "", RemainderUniform, RemainderNone:
		return true
	}
	return false
}

// CategoryWeight is one explicit entry of a distribution
type CategoryWeight struct {
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
}

// Distribution is a categorical distribution over one modality's catalog
type Distribution struct {
	Weights   []CategoryWeight `json:"weights"`
	Remainder RemainderPolicy  `json:"remainder,omitempty"`
}

// Policy returns the effective remainder policy
func (d Distribution) Policy() RemainderPolicy {
	if d.Remainder == "" {
		return RemainderUniform
	}
	return d.Remainder
}

// Validate checks the distribution against the labels of one modality
func (d Distribution) Validate(labels []string) error {
	if !d.Remainder.Valid() {
		return errors.Wrapf(errors.ErrInvalidDistribution, "unknown remainder policy %q", d.Remainder)
	}
	known := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		known[l] = struct{}{}
	}
	seen := make(map[string]struct{}, len(d.Weights))
	for _, cw := range d.Weights {
		if _, ok := known[cw.Category]; !ok {
			return errors.Wrapf(errors.ErrInvalidDistribution, "category %q not in catalog", cw.Category)
		}
		if _, dup := seen[cw.Category]; dup {
			return errors.Wrapf(errors.ErrInvalidDistribution, "category %q listed twice", cw.Category)
		}
		seen[cw.Category] = struct{}{}
		if cw.Weight < 0 || math.IsNaN(cw.Weight) || math.IsInf(cw.Weight, 0) {
			return errors.Wrapf(errors.ErrInvalidDistribution, "category %q has weight %v", cw.Category, cw.Weight)
		}
	}
	return nil
}

// Table holds one event's distribution per modality
type Table map[catalog.Modality]Distribution

// ProbabilityTable maps event label to its per-modality distributions
type ProbabilityTable map[string]Table

// InitParams holds a default parameter document per algorithm
type InitParams map[model.Algorithm]json.RawMessage

// Definition is everything configured for one event
type Definition struct {
	Name       string     `json:"name"`
	Position   int        `json:"position"`
	InitParams InitParams `json:"init_params"`
	Table      Table      `json:"table"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Validate checks the definition against a catalog snapshot
func (d *Definition) Validate(sets catalog.StatusSets) error {
	if d.Name == "" {
		return errors.NewValidationError("name", "required", nil)
	}
	for m, dist := range d.Table {
		if !m.Valid() {
			return errors.Wrapf(errors.ErrInvalidDistribution, "event %s: unknown modality %q", d.Name, m)
		}
		if err := dist.Validate(sets.Labels(m)); err != nil {
			return errors.Wrapf(err, "event %s %s", d.Name, m)
		}
	}
	return nil
}

// Package sampler draws synthetic observation sequences from per-event probability tables.
package sampler

import (
	"math/rand/v2"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/event"
	"eventanalyzer/pkg/errors"
)

// Sampler generates labeled observation sets for one catalog snapshot.
// It is not safe for concurrent use.
type Sampler struct {
	sets  catalog.StatusSets
	table event.ProbabilityTable
	rng   *rand.Rand
	last  catalog.ObservationSet
	cache map[cacheKey]*cdf
}

type cacheKey struct {
	event    string
	modality catalog.Modality
}

// cdf is an expanded distribution ready for inverse-transform draws
type cdf struct {
	categories []string
	cumulative []float64
}

// New creates a sampler. src drives every draw, so a seeded source makes output reproducible.
func New(sets catalog.StatusSets, table event.ProbabilityTable, src rand.Source) *Sampler {
	return &Sampler{
		sets:  sets,
		table: table,
		rng:   rand.New(src),
		cache: make(map[cacheKey]*cdf),
	}
}

// Expand turns a distribution into explicit (category, probability) pairs over the catalog labels.
// Under the uniform policy the unassigned mass max(0, 1-Σweights) is split evenly across the
// labels not listed; under RemainderNone it is dropped. The result is normalized to sum to 1.
func Expand(dist event.Distribution, labels []string) ([]string, []float64, error) {
	if err := dist.Validate(labels); err != nil {
		return nil, nil, err
	}

	categories := make([]string, 0, len(labels))
	weights := make([]float64, 0, len(labels))
	listed := make(map[string]struct{}, len(dist.Weights))
	var explicit float64
	for _, cw := range dist.Weights {
		categories = append(categories, cw.Category)
		weights = append(weights, cw.Weight)
		listed[cw.Category] = struct{}{}
		explicit += cw.Weight
	}

	if dist.Policy() == event.RemainderUniform {
		var others []string
		for _, l := range labels {
			if _, ok := listed[l]; !ok {
				others = append(others, l)
			}
		}
		if rest := 1 - explicit; rest > 0 && len(others) > 0 {
			share := rest / float64(len(others))
			for _, l := range others {
				categories = append(categories, l)
				weights = append(weights, share)
			}
		}
	}

	total := floats.Sum(weights)
	if total <= 0 {
		return nil, nil, errors.Wrap(errors.ErrInvalidDistribution, "distribution has no mass")
	}
	floats.Scale(1/total, weights)
	return categories, weights, nil
}

func newCDF(dist event.Distribution, labels []string) (*cdf, error) {
	categories, weights, err := Expand(dist, labels)
	if err != nil {
		return nil, err
	}
	cumulative := make([]float64, len(weights))
	floats.CumSum(cumulative, weights)
	cumulative[len(cumulative)-1] = 1
	return &cdf{categories: categories, cumulative: cumulative}, nil
}

func (c *cdf) draw(u float64) string {
	i := sort.SearchFloat64s(c.cumulative, u)
	// SearchFloat64s returns the first index with cumulative >= u; a draw that lands
	// exactly on a boundary belongs to the next bucket
	for i < len(c.cumulative)-1 && c.cumulative[i] == u {
		i++
	}
	return c.categories[i]
}

// SampleCategory draws one category of modality m from dist
func (s *Sampler) SampleCategory(m catalog.Modality, dist event.Distribution) (string, error) {
	if !m.Valid() {
		return "", errors.Wrapf(errors.ErrInvalidDistribution, "unknown modality %q", m)
	}
	c, err := newCDF(dist, s.sets.Labels(m))
	if err != nil {
		return "", errors.Wrapf(err, "%s", m)
	}
	return c.draw(s.rng.Float64()), nil
}

func (s *Sampler) cdfFor(eventName string, m catalog.Modality) (*cdf, error) {
	key := cacheKey{eventName, m}
	if c, ok := s.cache[key]; ok {
		return c, nil
	}
	table, ok := s.table[eventName]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownEvent, "%q has no probability table", eventName)
	}
	dist, ok := table[m]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidDistribution, "event %s has no %s distribution", eventName, m)
	}
	c, err := newCDF(dist, s.sets.Labels(m))
	if err != nil {
		return nil, errors.Wrapf(err, "event %s %s", eventName, m)
	}
	s.cache[key] = c
	return c, nil
}

// SampleSequence draws length observations, each modality independently per step
func (s *Sampler) SampleSequence(eventName string, length int) (catalog.Sequence, error) {
	if length < 0 {
		return nil, errors.NewValidationError("length", "must not be negative", length)
	}
	cdfs := make([]*cdf, len(catalog.Modalities))
	for i, m := range catalog.Modalities {
		c, err := s.cdfFor(eventName, m)
		if err != nil {
			return nil, err
		}
		cdfs[i] = c
	}

	seq := make(catalog.Sequence, length)
	for t := range seq {
		for i, m := range catalog.Modalities {
			seq[t].Set(m, cdfs[i].draw(s.rng.Float64()))
		}
	}
	return seq, nil
}

// SampleObservationSet draws count sequences of the given length and retains the result
func (s *Sampler) SampleObservationSet(eventName string, length, count int) (catalog.ObservationSet, error) {
	if count < 0 {
		return nil, errors.NewValidationError("count", "must not be negative", count)
	}
	set := make(catalog.ObservationSet, 0, count)
	for i := 0; i < count; i++ {
		seq, err := s.SampleSequence(eventName, length)
		if err != nil {
			return nil, err
		}
		set = append(set, seq)
	}
	s.last = set
	return set, nil
}

// Observations returns a copy of the most recent observation set
func (s *Sampler) Observations() catalog.ObservationSet {
	out := make(catalog.ObservationSet, len(s.last))
	for i, seq := range s.last {
		out[i] = slices.Clone(seq)
	}
	return out
}

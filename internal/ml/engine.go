package ml

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/pkg/errors"
)

// Dataset is a set of encoded training sequences plus the catalog sizes they were encoded against
type Dataset struct {
	Sequences   [][]catalog.Vector
	Cardinality [catalog.VectorWidth]int
}

// Observations returns the total number of time steps
func (d Dataset) Observations() int {
	n := 0
	for _, s := range d.Sequences {
		n += len(s)
	}
	return n
}

// FitReport summarizes one estimation run
type FitReport struct {
	Iterations    int     `json:"iterations"`
	LogLikelihood float64 `json:"log_likelihood"`
	Converged     bool    `json:"converged"`
}

// Trainer estimates model parameters from encoded sequences
type Trainer interface {
	// Fit starts from init and returns the fitted parameter document.
	// Fails with errors.ErrInputShape or errors.ErrConvergence.
	Fit(ctx context.Context, data Dataset, init json.RawMessage) (json.RawMessage, *FitReport, error)
}

// Scorer computes the log-likelihood of an encoded sequence under a parameter document
type Scorer interface {
	Score(params json.RawMessage, seq []catalog.Vector) (float64, error)
}

// Engine is everything the service needs from one model family
type Engine interface {
	Trainer
	Scorer
	Algorithm() model.Algorithm
}

// Registry maps algorithm names to engines
type Registry struct {
	mu      sync.RWMutex
	engines map[model.Algorithm]Engine
}

// NewRegistry creates a registry holding the given engines
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[model.Algorithm]Engine, len(engines))}
	for _, e := range engines {
		r.Register(e)
	}
	return r
}

// Register adds or replaces the engine for e.Algorithm()
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Algorithm()] = e
}

// Get returns the engine for algorithm or errors.ErrUnsupportedAlgorithm
func (r *Registry) Get(algorithm model.Algorithm) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.engines[algorithm]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedAlgorithm, "%q", algorithm)
	}
	return e, nil
}

// Algorithms lists registered algorithm names, sorted
func (r *Registry) Algorithms() []model.Algorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Algorithm, 0, len(r.engines))
	for a := range r.engines {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

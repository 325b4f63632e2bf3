// Package gmmhmm adapts the hmm estimator to the model registry's GMMHMM records.
package gmmhmm

import (
	"context"
	"encoding/json"
	"math/rand/v2"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/ml"
	"eventanalyzer/internal/ml/hmm"
	"eventanalyzer/pkg/errors"
)

var _ ml.Engine = (*Engine)(nil)

// Engine trains and scores GMMHMM parameter documents
type Engine struct{}

// New creates a GMMHMM engine
func New() *Engine {
	return &Engine{}
}

// Algorithm implements ml.Engine
func (e *Engine) Algorithm() model.Algorithm {
	return model.GMMHMM
}

// Fit implements ml.Trainer. A document that already carries emission parameters
// of the right shape is used as a warm start; otherwise the model is initialized
// from the data with the document's seed.
func (e *Engine) Fit(ctx context.Context, data ml.Dataset, init json.RawMessage) (json.RawMessage, *ml.FitReport, error) {
	p, err := DecodeParams(init)
	if err != nil {
		return nil, nil, err
	}
	seqs, err := toFloat(data)
	if err != nil {
		return nil, nil, err
	}

	var m *hmm.Model
	if p.Trained() {
		m = p.model()
		if err := m.Validate(); err != nil {
			return nil, nil, errors.Join(errors.ErrInputShape, err)
		}
		if m.NStates() != p.NComponents || m.NMix() != p.NMix || m.Dim() != catalog.VectorWidth {
			return nil, nil, errors.Wrapf(errors.ErrInputShape,
				"stored arrays are %dx%dx%d, params say %dx%dx%d",
				m.NStates(), m.NMix(), m.Dim(), p.NComponents, p.NMix, catalog.VectorWidth)
		}
	} else {
		rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
		m, err = hmm.NewFromData(seqs, p.NComponents, p.NMix, p.MinCovar, rng)
		if err != nil {
			return nil, nil, errors.Join(errors.ErrInputShape, err)
		}
	}

	res, err := m.Fit(ctx, seqs, hmm.FitOptions{MaxIter: p.NIter, Tol: p.Tol, MinCovar: p.MinCovar})
	if err != nil {
		switch {
		case errors.Is(err, hmm.ErrShape):
			return nil, nil, errors.Join(errors.ErrInputShape, err)
		case errors.Is(err, hmm.ErrDegenerate):
			return nil, nil, errors.Join(errors.ErrConvergence, err)
		}
		return nil, nil, err
	}

	report := &ml.FitReport{
		Iterations:    res.Iterations,
		LogLikelihood: res.LogLikelihood,
		Converged:     res.Converged,
	}
	p.setModel(m)
	p.Fit = report

	out, err := p.Encode()
	if err != nil {
		return nil, nil, err
	}
	return out, report, nil
}

// Score implements ml.Scorer
func (e *Engine) Score(params json.RawMessage, seq []catalog.Vector) (float64, error) {
	p, err := DecodeParams(params)
	if err != nil {
		return 0, errors.Join(errors.ErrScoring, err)
	}
	if !p.Trained() {
		return 0, errors.Wrap(errors.ErrScoring, "model has no emission parameters, train it first")
	}
	if len(seq) == 0 {
		return 0, errors.Wrap(errors.ErrScoring, "empty sequence")
	}

	ll, err := p.model().LogLikelihood(vectorsToFloat(seq))
	if err != nil {
		return 0, errors.Join(errors.ErrScoring, err)
	}
	return ll, nil
}

func toFloat(data ml.Dataset) ([][][]float64, error) {
	if len(data.Sequences) == 0 {
		return nil, errors.Wrap(errors.ErrInputShape, "no training sequences")
	}
	out := make([][][]float64, len(data.Sequences))
	for i, s := range data.Sequences {
		if len(s) == 0 {
			return nil, errors.Wrapf(errors.ErrInputShape, "sequence %d is empty", i)
		}
		for t, v := range s {
			for d, code := range v {
				if card := data.Cardinality[d]; code < 0 || (card > 0 && code >= card) {
					return nil, errors.Wrapf(errors.ErrInputShape,
						"sequence %d step %d: %s code %d outside [0,%d)", i, t, catalog.Modalities[d], code, card)
				}
			}
		}
		out[i] = vectorsToFloat(s)
	}
	return out, nil
}

func vectorsToFloat(seq []catalog.Vector) [][]float64 {
	out := make([][]float64, len(seq))
	for t, v := range seq {
		row := make([]float64, catalog.VectorWidth)
		for d, code := range v {
			row[d] = float64(code)
		}
		out[t] = row
	}
	return out
}

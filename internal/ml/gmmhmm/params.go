package gmmhmm

import (
	"encoding/json"

	"eventanalyzer/internal/ml"
	"eventanalyzer/internal/ml/hmm"
	"eventanalyzer/pkg/errors"
)

// Defaults applied to fields an init document leaves at zero
const (
	DefaultComponents = 3
	DefaultMix        = 2
	DefaultIter       = 20
	DefaultTol        = 1e-2
	DefaultMinCovar   = 1e-3
	CovarianceDiag    = "diag"
)

// Params is the parameter document stored in GMMHMM model records.
// Field names follow the conventions of common HMM toolkits.
type Params struct {
	NComponents    int     `json:"n_components"`
	NMix           int     `json:"n_mix"`
	CovarianceType string  `json:"covariance_type"`
	NIter          int     `json:"n_iter"`
	Tol            float64 `json:"tol"`
	MinCovar       float64 `json:"min_covar"`
	Seed           uint64  `json:"seed"`

	StartProb []float64     `json:"startprob,omitempty"`
	TransMat  [][]float64   `json:"transmat,omitempty"`
	Weights   [][]float64   `json:"weights,omitempty"`
	Means     [][][]float64 `json:"means,omitempty"`
	Covars    [][][]float64 `json:"covars,omitempty"`

	Fit *ml.FitReport `json:"fit,omitempty"`
}

// DecodeParams parses raw and fills defaults
func DecodeParams(raw json.RawMessage) (*Params, error) {
	p := &Params{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, errors.Wrapf(errors.ErrInputShape, "decode GMMHMM params: %v", err)
		}
	}
	p.applyDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Encode serializes p
func (p *Params) Encode() (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encode GMMHMM params")
	}
	return b, nil
}

// Trained reports whether p carries emission parameters
func (p *Params) Trained() bool {
	return len(p.Means) > 0
}

func (p *Params) applyDefaults() {
	if p.NComponents == 0 {
		p.NComponents = DefaultComponents
	}
	if p.NMix == 0 {
		p.NMix = DefaultMix
	}
	if p.CovarianceType == "" {
		p.CovarianceType = CovarianceDiag
	}
	if p.NIter == 0 {
		p.NIter = DefaultIter
	}
	if p.Tol == 0 {
		p.Tol = DefaultTol
	}
	if p.MinCovar == 0 {
		p.MinCovar = DefaultMinCovar
	}
}

func (p *Params) validate() error {
	switch {
	case p.NComponents < 0:
		return errors.Wrapf(errors.ErrInputShape, "n_components=%d", p.NComponents)
	case p.NMix < 0:
		return errors.Wrapf(errors.ErrInputShape, "n_mix=%d", p.NMix)
	case p.NIter < 0:
		return errors.Wrapf(errors.ErrInputShape, "n_iter=%d", p.NIter)
	case p.Tol < 0:
		return errors.Wrapf(errors.ErrInputShape, "tol=%v", p.Tol)
	case p.MinCovar < 0:
		return errors.Wrapf(errors.ErrInputShape, "min_covar=%v", p.MinCovar)
	case p.CovarianceType != CovarianceDiag:
		return errors.Wrapf(errors.ErrInputShape, "covariance_type %q is not supported", p.CovarianceType)
	}
	return nil
}

// model builds the numerical model from the stored arrays.
// Missing probability arrays default to uniform.
func (p *Params) model() *hmm.Model {
	m := &hmm.Model{
		StartProb: p.StartProb,
		TransMat:  p.TransMat,
		Weights:   p.Weights,
		Means:     p.Means,
		Covars:    p.Covars,
	}
	k := len(p.Means)
	if len(m.StartProb) == 0 {
		m.StartProb = uniform(k)
	}
	if len(m.TransMat) == 0 {
		m.TransMat = uniformRows(k, k)
	}
	if len(m.Weights) == 0 && k > 0 {
		m.Weights = uniformRows(k, len(p.Means[0]))
	}
	return m.Clone()
}

// setModel copies fitted arrays back into p
func (p *Params) setModel(m *hmm.Model) {
	p.StartProb = m.StartProb
	p.TransMat = m.TransMat
	p.Weights = m.Weights
	p.Means = m.Means
	p.Covars = m.Covars
}

func uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

func uniformRows(r, c int) [][]float64 {
	out := make([][]float64, r)
	for i := range out {
		out[i] = uniform(c)
	}
	return out
}

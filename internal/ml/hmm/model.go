// Package hmm implements a hidden Markov model with Gaussian-mixture emissions
// and diagonal covariances, estimated with Baum-Welch in log space.
package hmm

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"eventanalyzer/pkg/errors"
)

var (
	// ErrShape indicates parameters or observations with inconsistent dimensions
	ErrShape = errors.New("hmm: inconsistent shape")
	// ErrDegenerate indicates the likelihood or parameters became non-finite
	ErrDegenerate = errors.New("hmm: degenerate model")
)

const log2Pi = 1.8378770664093453 // log(2*pi)

// Model holds the parameters of an HMM with NStates hidden states,
// NMix mixture components per state and Dim-dimensional observations.
type Model struct {
	StartProb []float64     // [state]
	TransMat  [][]float64   // [from][to]
	Weights   [][]float64   // [state][mix]
	Means     [][][]float64 // [state][mix][dim]
	Covars    [][][]float64 // [state][mix][dim], diagonal variances
}

// NStates returns the number of hidden states
func (m *Model) NStates() int { return len(m.StartProb) }

// NMix returns the number of mixture components per state
func (m *Model) NMix() int {
	if len(m.Weights) == 0 {
		return 0
	}
	return len(m.Weights[0])
}

// Dim returns the observation width
func (m *Model) Dim() int {
	if len(m.Means) == 0 || len(m.Means[0]) == 0 {
		return 0
	}
	return len(m.Means[0][0])
}

// Validate checks that every parameter array agrees on the dimensions and holds finite values
func (m *Model) Validate() error {
	k, mix, dim := m.NStates(), m.NMix(), m.Dim()
	if k == 0 || mix == 0 || dim == 0 {
		return errors.Wrapf(ErrShape, "states=%d mix=%d dim=%d", k, mix, dim)
	}
	if len(m.TransMat) != k || len(m.Weights) != k || len(m.Means) != k || len(m.Covars) != k {
		return errors.Wrap(ErrShape, "per-state arrays disagree on state count")
	}
	if !finite(m.StartProb) {
		return errors.Wrap(ErrDegenerate, "startprob")
	}
	if !probabilities(m.StartProb) {
		return errors.Wrap(ErrShape, "startprob is not a probability vector")
	}
	for i := 0; i < k; i++ {
		if len(m.TransMat[i]) != k || len(m.Weights[i]) != mix || len(m.Means[i]) != mix || len(m.Covars[i]) != mix {
			return errors.Wrapf(ErrShape, "state %d", i)
		}
		if !finite(m.TransMat[i]) || !finite(m.Weights[i]) {
			return errors.Wrapf(ErrDegenerate, "state %d", i)
		}
		if !probabilities(m.TransMat[i]) || !probabilities(m.Weights[i]) {
			return errors.Wrapf(ErrShape, "state %d: rows must be probability vectors", i)
		}
		for c := 0; c < mix; c++ {
			if len(m.Means[i][c]) != dim || len(m.Covars[i][c]) != dim {
				return errors.Wrapf(ErrShape, "state %d component %d", i, c)
			}
			if !finite(m.Means[i][c]) || !finite(m.Covars[i][c]) {
				return errors.Wrapf(ErrDegenerate, "state %d component %d", i, c)
			}
			for _, v := range m.Covars[i][c] {
				if v <= 0 {
					return errors.Wrapf(ErrDegenerate, "state %d component %d: non-positive variance", i, c)
				}
			}
		}
	}
	return nil
}

// Clone returns a deep copy
func (m *Model) Clone() *Model {
	c := &Model{
		StartProb: append([]float64(nil), m.StartProb...),
		TransMat:  make([][]float64, len(m.TransMat)),
		Weights:   make([][]float64, len(m.Weights)),
		Means:     make([][][]float64, len(m.Means)),
		Covars:    make([][][]float64, len(m.Covars)),
	}
	for i := range m.TransMat {
		c.TransMat[i] = append([]float64(nil), m.TransMat[i]...)
	}
	for i := range m.Weights {
		c.Weights[i] = append([]float64(nil), m.Weights[i]...)
	}
	for i := range m.Means {
		c.Means[i] = make([][]float64, len(m.Means[i]))
		for j := range m.Means[i] {
			c.Means[i][j] = append([]float64(nil), m.Means[i][j]...)
		}
	}
	for i := range m.Covars {
		c.Covars[i] = make([][]float64, len(m.Covars[i]))
		for j := range m.Covars[i] {
			c.Covars[i][j] = append([]float64(nil), m.Covars[i][j]...)
		}
	}
	return c
}

// LogLikelihood returns log P(seq | model) computed with the forward recursion
func (m *Model) LogLikelihood(seq [][]float64) (float64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	if err := m.checkSequence(seq); err != nil {
		return 0, err
	}
	if len(seq) == 0 {
		return 0, errors.Wrap(ErrShape, "empty sequence")
	}

	lp := m.logParams()
	logB, _ := m.emissions(lp, seq)
	logAlpha := m.forward(lp, logB)

	ll := floats.LogSumExp(logAlpha[len(seq)-1])
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return 0, errors.Wrapf(ErrDegenerate, "log-likelihood %v", ll)
	}
	return ll, nil
}

func (m *Model) checkSequence(seq [][]float64) error {
	dim := m.Dim()
	for t, x := range seq {
		if len(x) != dim {
			return errors.Wrapf(ErrShape, "step %d has width %d, want %d", t, len(x), dim)
		}
	}
	return nil
}

// logParams caches the log of the probability parameters
type logParams struct {
	start   []float64
	trans   [][]float64
	weights [][]float64
}

func (m *Model) logParams() logParams {
	k := m.NStates()
	lp := logParams{
		start:   logOf(m.StartProb),
		trans:   make([][]float64, k),
		weights: make([][]float64, k),
	}
	for i := 0; i < k; i++ {
		lp.trans[i] = logOf(m.TransMat[i])
		lp.weights[i] = logOf(m.Weights[i])
	}
	return lp
}

// emissions returns log b_j(x_t) and the per-component terms log w_jc + log N(x_t | c)
func (m *Model) emissions(lp logParams, seq [][]float64) ([][]float64, [][][]float64) {
	k, mix := m.NStates(), m.NMix()
	logB := makeFloatArray(len(seq), k)
	logComp := make([][][]float64, len(seq))

	for t, x := range seq {
		logComp[t] = makeFloatArray(k, mix)
		for j := 0; j < k; j++ {
			for c := 0; c < mix; c++ {
				logComp[t][j][c] = lp.weights[j][c] + logGaussianDiag(x, m.Means[j][c], m.Covars[j][c])
			}
			logB[t][j] = floats.LogSumExp(logComp[t][j])
		}
	}
	return logB, logComp
}

func (m *Model) forward(lp logParams, logB [][]float64) [][]float64 {
	n, k := len(logB), m.NStates()
	logAlpha := makeFloatArray(n, k)
	buf := make([]float64, k)

	for j := 0; j < k; j++ {
		logAlpha[0][j] = lp.start[j] + logB[0][j]
	}
	for t := 1; t < n; t++ {
		for j := 0; j < k; j++ {
			for i := 0; i < k; i++ {
				buf[i] = logAlpha[t-1][i] + lp.trans[i][j]
			}
			logAlpha[t][j] = floats.LogSumExp(buf) + logB[t][j]
		}
	}
	return logAlpha
}

func (m *Model) backward(lp logParams, logB [][]float64) [][]float64 {
	n, k := len(logB), m.NStates()
	logBeta := makeFloatArray(n, k)
	buf := make([]float64, k)

	for t := n - 2; t >= 0; t-- {
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				buf[j] = lp.trans[i][j] + logB[t+1][j] + logBeta[t+1][j]
			}
			logBeta[t][i] = floats.LogSumExp(buf)
		}
	}
	return logBeta
}

func logGaussianDiag(x, mean, variance []float64) float64 {
	var s float64
	for d := range x {
		diff := x[d] - mean[d]
		s += log2Pi + math.Log(variance[d]) + diff*diff/variance[d]
	}
	return -0.5 * s
}

func logOf(p []float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = math.Log(v)
	}
	return out
}

// probabilities reports whether p is non-negative and sums to 1 within 1e-6
func probabilities(p []float64) bool {
	for _, v := range p {
		if v < 0 {
			return false
		}
	}
	return math.Abs(floats.Sum(p)-1) < 1e-6
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// makeFloatArray makes r slices of length c, packed contiguously
func makeFloatArray(r, c int) [][]float64 {
	bka := make([]float64, r*c)
	x := make([][]float64, r)
	ii := 0
	for j := 0; j < r; j++ {
		x[j] = bka[ii : ii+c]
		ii += c
	}
	return x
}

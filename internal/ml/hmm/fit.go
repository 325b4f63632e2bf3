package hmm

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"eventanalyzer/pkg/errors"
)

// FitOptions control Baum-Welch estimation
type FitOptions struct {
	MaxIter  int     // iteration cap
	Tol      float64 // stop once the log-likelihood gain drops below Tol
	MinCovar float64 // floor added to every variance
}

// FitResult reports how estimation went
type FitResult struct {
	Iterations    int
	LogLikelihood float64
	Converged     bool
	History       []float64 // total log-likelihood per iteration, before that iteration's update
}

// NewFromData builds a starting model from the pooled observations.
// States start uniform; component means are jittered observations drawn with rng,
// variances the pooled per-dimension variance.
func NewFromData(seqs [][][]float64, nStates, nMix int, minCovar float64, rng *rand.Rand) (*Model, error) {
	pool := make([][]float64, 0)
	for _, s := range seqs {
		pool = append(pool, s...)
	}
	if len(pool) == 0 || nStates <= 0 || nMix <= 0 {
		return nil, errors.Wrapf(ErrShape, "observations=%d states=%d mix=%d", len(pool), nStates, nMix)
	}
	dim := len(pool[0])
	for t, x := range pool {
		if len(x) != dim || dim == 0 {
			return nil, errors.Wrapf(ErrShape, "observation %d has width %d, want %d", t, len(x), dim)
		}
	}

	mean := make([]float64, dim)
	variance := make([]float64, dim)
	for _, x := range pool {
		floats.Add(mean, x)
	}
	floats.Scale(1/float64(len(pool)), mean)
	for _, x := range pool {
		for d := range x {
			diff := x[d] - mean[d]
			variance[d] += diff * diff
		}
	}
	floats.Scale(1/float64(len(pool)), variance)
	for d := range variance {
		variance[d] = math.Max(variance[d], 1e-2) + minCovar
	}

	m := &Model{
		StartProb: uniform(nStates),
		TransMat:  make([][]float64, nStates),
		Weights:   make([][]float64, nStates),
		Means:     make([][][]float64, nStates),
		Covars:    make([][][]float64, nStates),
	}
	for j := 0; j < nStates; j++ {
		m.TransMat[j] = uniform(nStates)
		m.Weights[j] = uniform(nMix)
		m.Means[j] = make([][]float64, nMix)
		m.Covars[j] = make([][]float64, nMix)
		for c := 0; c < nMix; c++ {
			x := pool[rng.IntN(len(pool))]
			mu := make([]float64, dim)
			for d := range mu {
				mu[d] = x[d] + (rng.Float64()-0.5)*0.1*math.Sqrt(variance[d])
			}
			m.Means[j][c] = mu
			m.Covars[j][c] = append([]float64(nil), variance...)
		}
	}
	return m, nil
}

// Fit runs Baum-Welch on seqs, updating m in place
func (m *Model) Fit(ctx context.Context, seqs [][][]float64, opts FitOptions) (FitResult, error) {
	var res FitResult

	if err := m.Validate(); err != nil {
		return res, err
	}
	if len(seqs) == 0 {
		return res, errors.Wrap(ErrShape, "no sequences")
	}
	for i, s := range seqs {
		if len(s) == 0 {
			return res, errors.Wrapf(ErrShape, "sequence %d is empty", i)
		}
		if err := m.checkSequence(s); err != nil {
			return res, errors.Wrapf(err, "sequence %d", i)
		}
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = 1
	}

	prev := math.Inf(-1)
	for iter := 1; iter <= opts.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		acc := newAccumulator(m.NStates(), m.NMix(), m.Dim())
		lp := m.logParams()
		var total float64
		for _, s := range seqs {
			total += m.accumulate(lp, s, acc)
		}
		if math.IsNaN(total) || math.IsInf(total, 0) {
			return res, errors.Wrapf(ErrDegenerate, "iteration %d: log-likelihood %v", iter, total)
		}

		m.maximize(acc, opts.MinCovar)
		if err := m.Validate(); err != nil {
			return res, errors.Wrapf(ErrDegenerate, "iteration %d: %v", iter, err)
		}

		res.Iterations = iter
		res.LogLikelihood = total
		res.History = append(res.History, total)

		if iter > 1 && total-prev < opts.Tol {
			res.Converged = true
			break
		}
		prev = total
	}
	return res, nil
}

// accumulator holds expected sufficient statistics across sequences
type accumulator struct {
	start []float64
	trans [][]float64
	post  [][]float64   // [state][mix]
	sumX  [][][]float64 // [state][mix][dim]
	sumX2 [][][]float64
}

func newAccumulator(k, mix, dim int) *accumulator {
	a := &accumulator{
		start: make([]float64, k),
		trans: makeFloatArray(k, k),
		post:  makeFloatArray(k, mix),
		sumX:  make([][][]float64, k),
		sumX2: make([][][]float64, k),
	}
	for j := 0; j < k; j++ {
		a.sumX[j] = makeFloatArray(mix, dim)
		a.sumX2[j] = makeFloatArray(mix, dim)
	}
	return a
}

// accumulate adds one sequence's expectations to acc and returns its log-likelihood
func (m *Model) accumulate(lp logParams, seq [][]float64, acc *accumulator) float64 {
	k, mix := m.NStates(), m.NMix()
	n := len(seq)

	logB, logComp := m.emissions(lp, seq)
	logAlpha := m.forward(lp, logB)
	logBeta := m.backward(lp, logB)
	ll := floats.LogSumExp(logAlpha[n-1])
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return ll
	}

	for t := 0; t < n; t++ {
		x := seq[t]
		for j := 0; j < k; j++ {
			gamma := math.Exp(logAlpha[t][j] + logBeta[t][j] - ll)
			if t == 0 {
				acc.start[j] += gamma
			}
			if gamma == 0 {
				continue
			}
			for c := 0; c < mix; c++ {
				r := gamma * math.Exp(logComp[t][j][c]-logB[t][j])
				acc.post[j][c] += r
				floats.AddScaled(acc.sumX[j][c], r, x)
				for d, v := range x {
					acc.sumX2[j][c][d] += r * v * v
				}
			}
		}
		if t == n-1 {
			continue
		}
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				acc.trans[i][j] += math.Exp(logAlpha[t][i] + lp.trans[i][j] + logB[t+1][j] + logBeta[t+1][j] - ll)
			}
		}
	}
	return ll
}

// maximize re-estimates parameters from acc; rows without mass keep their previous values
func (m *Model) maximize(acc *accumulator, minCovar float64) {
	normalizeInto(m.StartProb, acc.start)
	for i := range m.TransMat {
		normalizeInto(m.TransMat[i], acc.trans[i])
	}

	for j := range m.Weights {
		normalizeInto(m.Weights[j], acc.post[j])
		for c := range m.Means[j] {
			w := acc.post[j][c]
			if w < 1e-12 {
				continue
			}
			for d := range m.Means[j][c] {
				mu := acc.sumX[j][c][d] / w
				v := acc.sumX2[j][c][d]/w - mu*mu
				m.Means[j][c][d] = mu
				m.Covars[j][c][d] = math.Max(v, 0) + minCovar
			}
		}
	}
}

// normalizeInto writes counts/sum(counts) into dst unless the counts carry no mass
func normalizeInto(dst, counts []float64) {
	s := floats.Sum(counts)
	if s < 1e-300 {
		return
	}
	for i, v := range counts {
		dst[i] = v / s
	}
}

func uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

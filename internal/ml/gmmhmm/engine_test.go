package gmmhmm

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/ml"
	"eventanalyzer/pkg/errors"
)

var card = [catalog.VectorWidth]int{6, 107, 18}

// dataset draws sequences concentrated around center with occasional noise
func dataset(seed uint64, center catalog.Vector, n, length int) ml.Dataset {
	rng := rand.New(rand.NewPCG(seed, seed))
	seqs := make([][]catalog.Vector, n)
	for i := range seqs {
		seq := make([]catalog.Vector, length)
		for t := range seq {
			v := center
			for d := range v {
				if rng.Float64() < 0.3 {
					v[d] = rng.IntN(card[d])
				}
			}
			seq[t] = v
		}
		seqs[i] = seq
	}
	return ml.Dataset{Sequences: seqs, Cardinality: card}
}

const initDoc = `{"n_components":2,"n_mix":1,"n_iter":15,"tol":0.01,"min_covar":0.001,"seed":7}`

func TestFitAndScore(t *testing.T) {
	e := New()
	data := dataset(1, catalog.Vector{2, 19, 15}, 30, 10)

	raw, report, err := e.Fit(context.Background(), data, json.RawMessage(initDoc))
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Greater(t, report.Iterations, 0)
	assert.False(t, math.IsNaN(report.LogLikelihood))

	p, err := DecodeParams(raw)
	require.NoError(t, err)
	assert.True(t, p.Trained())
	assert.Len(t, p.Means, 2)
	assert.Len(t, p.Means[0][0], catalog.VectorWidth)
	assert.Equal(t, report, p.Fit)
	assert.Equal(t, uint64(7), p.Seed)

	near, err := e.Score(raw, data.Sequences[0])
	require.NoError(t, err)

	far := dataset(2, catalog.Vector{4, 90, 1}, 1, 10).Sequences[0]
	farLL, err := e.Score(raw, far)
	require.NoError(t, err)
	assert.Greater(t, near, farLL)
}

func TestFitDeterministicForSeed(t *testing.T) {
	e := New()
	data := dataset(3, catalog.Vector{1, 0, 2}, 10, 8)

	a, _, err := e.Fit(context.Background(), data, json.RawMessage(initDoc))
	require.NoError(t, err)
	b, _, err := e.Fit(context.Background(), data, json.RawMessage(initDoc))
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestFitWarmStart(t *testing.T) {
	e := New()
	data := dataset(4, catalog.Vector{0, 5, 3}, 20, 10)

	first, _, err := e.Fit(context.Background(), data, json.RawMessage(initDoc))
	require.NoError(t, err)

	second, report, err := e.Fit(context.Background(), data, first)
	require.NoError(t, err)

	p1, _ := DecodeParams(first)
	p2, _ := DecodeParams(second)
	// continuing from a fitted model can't start below where the first run ended
	assert.GreaterOrEqual(t, report.LogLikelihood, p1.Fit.LogLikelihood-1e-2)
	assert.Len(t, p2.Means, len(p1.Means))
}

func TestFitInputShapeErrors(t *testing.T) {
	e := New()
	ctx := context.Background()

	_, _, err := e.Fit(ctx, ml.Dataset{Cardinality: card}, json.RawMessage(initDoc))
	assert.True(t, errors.Is(err, errors.ErrInputShape))

	_, _, err = e.Fit(ctx, ml.Dataset{Sequences: [][]catalog.Vector{{}}, Cardinality: card}, json.RawMessage(initDoc))
	assert.True(t, errors.Is(err, errors.ErrInputShape))

	out := ml.Dataset{Sequences: [][]catalog.Vector{{{6, 0, 0}}}, Cardinality: card}
	_, _, err = e.Fit(ctx, out, json.RawMessage(initDoc))
	assert.True(t, errors.Is(err, errors.ErrInputShape))

	_, _, err = e.Fit(ctx, dataset(5, catalog.Vector{}, 2, 2), json.RawMessage(`{"n_components":`))
	assert.True(t, errors.Is(err, errors.ErrInputShape))

	_, _, err = e.Fit(ctx, dataset(5, catalog.Vector{}, 2, 2), json.RawMessage(`{"covariance_type":"full"}`))
	assert.True(t, errors.Is(err, errors.ErrInputShape))

	mismatched := `{"n_components":3,"n_mix":1,"means":[[[0,0,0]],[[1,1,1]]],"covars":[[[1,1,1]],[[1,1,1]]]}`
	_, _, err = e.Fit(ctx, dataset(5, catalog.Vector{}, 2, 2), json.RawMessage(mismatched))
	assert.True(t, errors.Is(err, errors.ErrInputShape))
}

func TestScoreErrors(t *testing.T) {
	e := New()
	seq := []catalog.Vector{{0, 0, 0}}

	_, err := e.Score(json.RawMessage(initDoc), seq)
	assert.True(t, errors.Is(err, errors.ErrScoring))

	raw, _, err := e.Fit(context.Background(), dataset(6, catalog.Vector{1, 1, 1}, 5, 5), json.RawMessage(initDoc))
	require.NoError(t, err)

	_, err = e.Score(raw, nil)
	assert.True(t, errors.Is(err, errors.ErrScoring))

	_, err = e.Score(json.RawMessage(`not json`), seq)
	assert.True(t, errors.Is(err, errors.ErrScoring))
}

func TestDecodeParamsDefaults(t *testing.T) {
	p, err := DecodeParams(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultComponents, p.NComponents)
	assert.Equal(t, DefaultMix, p.NMix)
	assert.Equal(t, CovarianceDiag, p.CovarianceType)
	assert.False(t, p.Trained())
}

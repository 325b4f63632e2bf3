package ml

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/pkg/errors"
)

type stubEngine struct{ name model.Algorithm }

func (s stubEngine) Algorithm() model.Algorithm { return s.name }

func (s stubEngine) Fit(context.Context, Dataset, json.RawMessage) (json.RawMessage, *FitReport, error) {
	return json.RawMessage(`{}`), &FitReport{}, nil
}

func (s stubEngine) Score(json.RawMessage, []catalog.Vector) (float64, error) { return 0, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubEngine{"B"}, stubEngine{model.GMMHMM})

	e, err := r.Get(model.GMMHMM)
	require.NoError(t, err)
	assert.Equal(t, model.GMMHMM, e.Algorithm())

	_, err = r.Get("HMM")
	assert.True(t, errors.Is(err, errors.ErrUnsupportedAlgorithm))

	assert.Equal(t, []model.Algorithm{"B", model.GMMHMM}, r.Algorithms())
}

func TestDatasetObservations(t *testing.T) {
	d := Dataset{Sequences: [][]catalog.Vector{{{0, 0, 0}, {1, 1, 1}}, {{2, 2, 2}}}}
	assert.Equal(t, 3, d.Observations())
}

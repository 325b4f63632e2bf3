// Package classifier scores a sequence against every event model of a tag
// and turns the log-likelihoods into a probability distribution.
package classifier

import (
	"encoding/json"
	"math"
	"sort"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/ml"
	"eventanalyzer/pkg/errors"
)

// Candidate is one event's model as seen by the classifier
type Candidate struct {
	StatusSets catalog.StatusSets
	Params     json.RawMessage
}

// Result contains the outcome of one classification
type Result struct {
	Event          string             `json:"event"`      // most probable event
	Confidence     float64            `json:"confidence"` // its probability
	Probabilities  map[string]float64 `json:"probabilities"`
	LogLikelihoods map[string]float64 `json:"log_likelihoods"`
	Skipped        map[string]string  `json:"skipped,omitempty"` // event -> reason it was left out
}

// Classifier performs event classification with a scorer
type Classifier struct {
	scorer ml.Scorer
}

// New creates a classifier
func New(scorer ml.Scorer) *Classifier {
	return &Classifier{scorer: scorer}
}

// Predict encodes seq with each candidate's own catalog, scores it and normalizes the results.
// A candidate that can't be scored is skipped and reported; if none can be scored the call
// fails with errors.ErrScoring.
func (c *Classifier) Predict(seq catalog.Sequence, candidates map[string]Candidate) (*Result, error) {
	if len(candidates) == 0 {
		return nil, errors.ErrEmptyModelSet
	}

	events := make([]string, 0, len(candidates))
	for e := range candidates {
		events = append(events, e)
	}
	sort.Strings(events)

	res := &Result{
		LogLikelihoods: make(map[string]float64, len(events)),
		Skipped:        make(map[string]string),
	}
	var failures errors.MultiError
	for _, e := range events {
		cand := candidates[e]
		encoded, err := cand.StatusSets.Encode(seq)
		if err != nil {
			err = errors.Join(errors.ErrScoring, errors.Wrapf(err, "event %s", e))
			res.Skipped[e] = err.Error()
			failures.Add(err)
			continue
		}
		ll, err := c.scorer.Score(cand.Params, encoded)
		if err == nil && (math.IsNaN(ll) || math.IsInf(ll, 0)) {
			err = errors.Wrapf(errors.ErrScoring, "log-likelihood %v", ll)
		}
		if err != nil {
			err = errors.Wrapf(err, "event %s", e)
			res.Skipped[e] = err.Error()
			failures.Add(err)
			continue
		}
		res.LogLikelihoods[e] = ll
	}

	if len(res.LogLikelihoods) == 0 {
		return nil, errors.Join(errors.ErrScoring, failures.ToError())
	}

	res.Probabilities = Normalize(res.LogLikelihoods)
	for _, e := range events {
		if p, ok := res.Probabilities[e]; ok && (res.Event == "" || p > res.Confidence) {
			res.Event, res.Confidence = e, p
		}
	}
	if len(res.Skipped) == 0 {
		res.Skipped = nil
	}
	return res, nil
}

// Normalize converts log-likelihoods to probabilities summing to 1:
// subtract the maximum, exponentiate, divide by the sum.
func Normalize(logLikelihoods map[string]float64) map[string]float64 {
	maxLL := math.Inf(-1)
	for _, ll := range logLikelihoods {
		maxLL = math.Max(maxLL, ll)
	}

	out := make(map[string]float64, len(logLikelihoods))
	var sum float64
	for e, ll := range logLikelihoods {
		w := math.Exp(ll - maxLL)
		out[e] = w
		sum += w
	}
	for e := range out {
		out[e] /= sum
	}
	return out
}

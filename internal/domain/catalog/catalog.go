package catalog

import (
	"slices"

	"eventanalyzer/pkg/errors"
)

// Labels returns the ordered labels of modality m
func (s StatusSets) Labels(m Modality) []string {
	switch m {
	case Motion:
		return s.Motion
	case Sound:
		return s.Sound
	case Location:
		return s.Location
	}
	return nil
}

// Index returns the numeric code of category within modality m
func (s StatusSets) Index(m Modality, category string) (int, error) {
	if !m.Valid() {
		return 0, errors.Wrapf(errors.ErrUnknownCategory, "unknown modality %q", m)
	}
	if i := slices.Index(s.Labels(m), category); i >= 0 {
		return i, nil
	}
	return 0, errors.Wrapf(errors.ErrUnknownCategory, "%s=%q", m, category)
}

// Category decodes a numeric code back to its label
func (s StatusSets) Category(m Modality, code int) (string, error) {
	labels := s.Labels(m)
	if code < 0 || code >= len(labels) {
		return "", errors.Wrapf(errors.ErrUnknownCategory, "%s code %d out of range [0,%d)", m, code, len(labels))
	}
	return labels[code], nil
}

// Cardinality returns the number of labels per vector dimension
func (s StatusSets) Cardinality() [VectorWidth]int {
	var out [VectorWidth]int
	for i, m := range Modalities {
		out[i] = len(s.Labels(m))
	}
	return out
}

// Validate rejects empty modalities and duplicate labels
func (s StatusSets) Validate() error {
	for _, m := range Modalities {
		labels := s.Labels(m)
		if len(labels) == 0 {
			return errors.NewValidationError(m.String(), "catalog has no categories", nil)
		}
		seen := make(map[string]struct{}, len(labels))
		for _, l := range labels {
			if l == "" {
				return errors.NewValidationError(m.String(), "empty category label", nil)
			}
			if _, dup := seen[l]; dup {
				return errors.NewValidationError(m.String(), "duplicate category label", l)
			}
			seen[l] = struct{}{}
		}
	}
	return nil
}

// Clone returns a deep copy so callers can't mutate a frozen snapshot
func (s StatusSets) Clone() StatusSets {
	return StatusSets{
		Motion:   slices.Clone(s.Motion),
		Sound:    slices.Clone(s.Sound),
		Location: slices.Clone(s.Location),
	}
}

// Equal reports whether both snapshots assign the same codes
func (s StatusSets) Equal(o StatusSets) bool {
	return slices.Equal(s.Motion, o.Motion) &&
		slices.Equal(s.Sound, o.Sound) &&
		slices.Equal(s.Location, o.Location)
}

// EncodeObservation maps one observation to its vector
func (s StatusSets) EncodeObservation(o Observation) (Vector, error) {
	var v Vector
	for i, m := range Modalities {
		code, err := s.Index(m, o.Value(m))
		if err != nil {
			return Vector{}, err
		}
		v[i] = code
	}
	return v, nil
}

// Encode maps a sequence to vectors, preserving order
func (s StatusSets) Encode(seq Sequence) ([]Vector, error) {
	out := make([]Vector, len(seq))
	for t, o := range seq {
		v, err := s.EncodeObservation(o)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", t)
		}
		out[t] = v
	}
	return out, nil
}

// EncodeSet encodes every sequence of an observation set
func (s StatusSets) EncodeSet(set ObservationSet) ([][]Vector, error) {
	out := make([][]Vector, len(set))
	for i, seq := range set {
		enc, err := s.Encode(seq)
		if err != nil {
			return nil, errors.Wrapf(err, "sequence %d", i)
		}
		out[i] = enc
	}
	return out, nil
}

// Decode maps vectors back to observations
func (s StatusSets) Decode(vectors []Vector) (Sequence, error) {
	out := make(Sequence, len(vectors))
	for t, v := range vectors {
		for i, m := range Modalities {
			c, err := s.Category(m, v[i])
			if err != nil {
				return nil, errors.Wrapf(err, "step %d", t)
			}
			out[t].Set(m, c)
		}
	}
	return out, nil
}

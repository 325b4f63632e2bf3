package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "ok"},
		{"sentinel", ErrNoModelsForTag, "no_models_for_tag"},
		{"wrapped", Wrapf(ErrUnknownCategory, "motion=%q", "flying"), "unknown_category"},
		{"scoring wraps category", Join(ErrScoring, ErrUnknownCategory), "scoring"},
		{"validation", NewValidationError("tag", "required", nil), "invalid_input"},
		{"domain", NewDomainError("training_in_progress", "locked", ErrConflict), "training_in_progress"},
		{"registry", Wrap(ErrRegistry, "upsert model"), "registry"},
		{"unknown", New("boom"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestIsExpected(t *testing.T) {
	assert.True(t, IsExpected(ErrNotFound))
	assert.True(t, IsExpected(NewValidationError("seq", "must not be empty", nil)))
	assert.False(t, IsExpected(Wrap(ErrRegistry, "select")))
	assert.False(t, IsExpected(New("driver: bad connection")))
	assert.False(t, IsExpected(nil))
}

func TestShouldTrack(t *testing.T) {
	assert.False(t, ShouldTrack(nil))
	assert.False(t, ShouldTrack(Wrap(ErrCatalogConflict, "t1")))
	assert.True(t, ShouldTrack(Join(ErrUnavailable, New("dial tcp: refused"))))
	assert.True(t, ShouldTrack(New("nil pointer")))
}

func TestMultiErrorUnwrap(t *testing.T) {
	var m MultiError
	assert.NoError(t, m.ToError())

	m.Add(nil)
	m.Add(Wrap(ErrUnknownEvent, "go_work"))
	m.Add(ErrConvergence)

	err := m.ToError()
	assert.Error(t, err)
	assert.True(t, Is(err, ErrUnknownEvent))
	assert.True(t, Is(err, ErrConvergence))
	assert.Contains(t, err.Error(), "multiple errors (2)")
}

func TestValidationErrorIsInvalidInput(t *testing.T) {
	err := Wrap(NewValidationError("obs", "must be a 2-D list", "x"), "decode request")

	var ve *ValidationError
	assert.True(t, As(err, &ve))
	assert.Equal(t, "obs", ve.Field)
	assert.True(t, Is(err, ErrInvalidInput))
}

package seeds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
)

func TestDefaultsAreConsistent(t *testing.T) {
	sets := StatusSets()
	require.NoError(t, sets.Validate())
	assert.Len(t, sets.Motion, 6)
	assert.Len(t, sets.Sound, 18)
	assert.Len(t, sets.Location, 107)

	events := Events()
	assert.Len(t, events, 14)

	names := map[string]bool{}
	for i, d := range events {
		require.NoError(t, d.Validate(sets), d.Name)
		assert.Equal(t, i, d.Position)
		assert.Contains(t, d.InitParams, model.GMMHMM)
		for _, m := range catalog.Modalities {
			assert.Contains(t, d.Table, m, "%s misses %s", d.Name, m)
		}
		names[d.Name] = true
	}
	assert.Len(t, names, 14)
	assert.True(t, names["work_in_office"])
}

func TestDefaultsAreFreshCopies(t *testing.T) {
	a := Events()
	a[0].Table[catalog.Motion] = dist()

	b := Events()
	assert.NotEmpty(t, b[0].Table[catalog.Motion].Weights)

	s := StatusSets()
	s.Motion[0] = "teleporting"
	assert.Equal(t, "walking", StatusSets().Motion[0])
}

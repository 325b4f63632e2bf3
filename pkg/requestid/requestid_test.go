package requestid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithAndFrom(t *testing.T) {
	assert.Empty(t, From(context.Background()))

	ctx := With(context.Background(), "req-1")
	assert.Equal(t, "req-1", From(ctx))
}

func TestEnsure(t *testing.T) {
	ctx, id := Ensure(With(context.Background(), "given"))
	assert.Equal(t, "given", id)
	assert.Equal(t, "given", From(ctx))

	ctx, id = Ensure(context.Background())
	assert.Len(t, id, 36)
	assert.Equal(t, id, From(ctx))
}

package hash

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedderDeterminism(t *testing.T) {
	ctx := context.Background()
	e := New(64)

	first, err := e.EmbedText(ctx, "the quick brown fox")
	require.NoError(t, err)
	second, err := e.EmbedText(ctx, "the quick brown fox")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEmbedderDistinctTexts(t *testing.T) {
	ctx := context.Background()
	e := New(64)

	a, err := e.EmbedText(ctx, "first text")
	require.NoError(t, err)
	b, err := e.EmbedText(ctx, "second text")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEmbedderDimension(t *testing.T) {
	ctx := context.Background()

	t.Run("configured dimension", func(t *testing.T) {
		e := New(128)
		assert.Equal(t, 128, e.Dimension())

		v, err := e.EmbedText(ctx, "text")
		require.NoError(t, err)
		assert.Len(t, v, 128)
	})

	t.Run("non-positive selects default", func(t *testing.T) {
		e := New(0)
		assert.Equal(t, DefaultDimension, e.Dimension())
	})
}

func TestEmbedderUnitNorm(t *testing.T) {
	ctx := context.Background()
	e := New(96)

	v, err := e.EmbedText(ctx, "normalize me")
	require.NoError(t, err)

	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-4)
}

func TestEmbedTexts(t *testing.T) {
	ctx := context.Background()
	e := New(32)

	vectors, err := e.EmbedTexts(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	single, err := e.EmbedText(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, single, vectors[1])
}

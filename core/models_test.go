package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		id1 := IDFromContent("hello world")
		id2 := IDFromContent("hello world")
		assert.Equal(t, id1, id2)
	})

	t.Run("different content different id", func(t *testing.T) {
		id1 := IDFromContent("hello world")
		id2 := IDFromContent("hello there")
		assert.NotEqual(t, id1, id2)
	})

	t.Run("empty content", func(t *testing.T) {
		id := IDFromContent("")
		assert.NotZero(t, id)
	})
}

func TestChunkID(t *testing.T) {
	t.Run("source participates in hash", func(t *testing.T) {
		a := ChunkID("doc-a.txt", "same paragraph")
		b := ChunkID("doc-b.txt", "same paragraph")
		assert.NotEqual(t, a, b)
	})

	t.Run("stable across calls", func(t *testing.T) {
		a := ChunkID("doc.txt", "some text")
		b := ChunkID("doc.txt", "some text")
		assert.Equal(t, a, b)
	})
}

func TestChunkDimension(t *testing.T) {
	chunk := &Chunk{Text: "t", Source: "s"}
	assert.Equal(t, 0, chunk.Dimension())

	chunk.Vector = []float32{0.1, 0.2, 0.3}
	assert.Equal(t, 3, chunk.Dimension())
}

func TestSearchTypeString(t *testing.T) {
	assert.Equal(t, "lexical", SearchTypeLexical.String())
	assert.Equal(t, "semantic", SearchTypeSemantic.String())
	assert.Equal(t, "hybrid", SearchTypeHybrid.String())
	assert.Equal(t, "unknown", SearchType(0).String())
}

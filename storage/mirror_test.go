package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/core"
)

func chunkWithVector(id core.ID, source string, vector []float32) *core.Chunk {
	return &core.Chunk{
		Id:     id,
		Text:   "text",
		Vector: vector,
		Source: source,
	}
}

func TestMirrorPutAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()

	require.NoError(t, m.PutChunks(ctx,
		chunkWithVector(1, "a", []float32{1, 0}),
		chunkWithVector(2, "a", []float32{0, 1})))

	chunks, err := m.GetChunks(ctx, 1, 2, 99)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	count, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, m.SourceCount())
}

func TestMirrorPutSetsTimestamps(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()

	chunk := chunkWithVector(1, "a", []float32{1})
	require.NoError(t, m.PutChunks(ctx, chunk))
	assert.False(t, chunk.InsertedAt.IsZero())
	assert.False(t, chunk.UpdatedAt.IsZero())
}

func TestMirrorReplaceUpdatesIndexes(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()

	require.NoError(t, m.PutChunks(ctx, chunkWithVector(1, "a", []float32{1, 0})))
	// Same ID, new source and dimension.
	require.NoError(t, m.PutChunks(ctx, chunkWithVector(1, "b", []float32{1, 0, 0})))

	count, _ := m.Count(ctx)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, m.SourceCount())
	assert.Equal(t, map[int]int{3: 1}, m.DimensionHistogram())
}

func TestMirrorFindSimilar(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()

	require.NoError(t, m.PutChunks(ctx,
		chunkWithVector(1, "a", []float32{1, 0}),
		chunkWithVector(2, "a", []float32{0.9, 0.1}),
		chunkWithVector(3, "a", []float32{0, 1})))

	results, err := m.FindSimilar(ctx, []float32{1, 0}, 0.5, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.ID(1), results[0].Chunk.Id)
	assert.Equal(t, core.ID(2), results[1].Chunk.Id)
}

func TestMirrorFindSimilarDimensionSafety(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()

	// Corpus holds both 2- and 3-dimension chunks.
	require.NoError(t, m.PutChunks(ctx,
		chunkWithVector(1, "a", []float32{1, 0}),
		chunkWithVector(2, "a", []float32{1, 0, 0})))

	results, err := m.FindSimilar(ctx, []float32{1, 0}, 0, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(1), results[0].Chunk.Id)
}

func TestMirrorFindSimilarFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()

	tagged := chunkWithVector(1, "a", []float32{1, 0})
	tagged.Metadata = map[string]string{"lang": "tr"}
	require.NoError(t, m.PutChunks(ctx, tagged, chunkWithVector(2, "a", []float32{1, 0})))

	t.Run("matching filter", func(t *testing.T) {
		results, err := m.FindSimilar(ctx, []float32{1, 0}, 0, 10, Filter{"lang": "tr"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, core.ID(1), results[0].Chunk.Id)
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := m.FindSimilar(ctx, []float32{1, 0}, 0, 10, Filter{"": "x"})
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})
}

func TestMirrorDeleteBySource(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()

	require.NoError(t, m.PutChunks(ctx,
		chunkWithVector(1, "a", []float32{1}),
		chunkWithVector(2, "a", []float32{1}),
		chunkWithVector(3, "b", []float32{1})))

	count, err := m.DeleteBySource(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Idempotent: second delete removes nothing.
	count, err = m.DeleteBySource(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	total, _ := m.Count(ctx)
	assert.Equal(t, 1, total)
}

func TestMirrorPredominantDimension(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()

	t.Run("empty mirror yields zero", func(t *testing.T) {
		assert.Equal(t, 0, m.PredominantDimension())
	})

	t.Run("majority wins", func(t *testing.T) {
		require.NoError(t, m.PutChunks(ctx,
			chunkWithVector(1, "a", []float32{1, 0}),
			chunkWithVector(2, "a", []float32{0, 1}),
			chunkWithVector(3, "a", []float32{1, 0, 0})))
		assert.Equal(t, 2, m.PredominantDimension())
	})

	t.Run("histogram tracks deletes", func(t *testing.T) {
		_, err := m.DeleteBySource(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 0, m.PredominantDimension())
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

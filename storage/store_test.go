package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/core"
)

// flakyRepository delegates to an inner mirror and fails on demand,
// standing in for a durable backend that goes away.
type flakyRepository struct {
	inner *Mirror
	fail  bool
}

var errBackendDown = errors.New("backend down")

func (f *flakyRepository) PutChunks(ctx context.Context, chunks ...*core.Chunk) error {
	if f.fail {
		return errBackendDown
	}
	return f.inner.PutChunks(ctx, chunks...)
}

func (f *flakyRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	if f.fail {
		return nil, errBackendDown
	}
	return f.inner.GetChunks(ctx, ids...)
}

func (f *flakyRepository) DeleteChunks(ctx context.Context, ids ...core.ID) error {
	if f.fail {
		return errBackendDown
	}
	return f.inner.DeleteChunks(ctx, ids...)
}

func (f *flakyRepository) DeleteBySource(ctx context.Context, source string) (int, error) {
	if f.fail {
		return 0, errBackendDown
	}
	return f.inner.DeleteBySource(ctx, source)
}

func (f *flakyRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, filter Filter) ([]*core.SearchResult, error) {
	if f.fail {
		return nil, errBackendDown
	}
	return f.inner.FindSimilar(ctx, vector, minSimilarity, limit, filter)
}

func (f *flakyRepository) ForEach(ctx context.Context, fn func(*core.Chunk) error) error {
	if f.fail {
		return errBackendDown
	}
	return f.inner.ForEach(ctx, fn)
}

func (f *flakyRepository) Count(ctx context.Context) (int, error) {
	if f.fail {
		return 0, errBackendDown
	}
	return f.inner.Count(ctx)
}

func (f *flakyRepository) Close() error { return nil }

func newTestStore(t *testing.T) (*Store, *flakyRepository) {
	t.Helper()
	durable := &flakyRepository{inner: NewMirror()}
	store, err := NewStore(durable, "test")
	require.NoError(t, err)
	return store, durable
}

func testChunk(source, text string, vector []float32) *core.Chunk {
	return &core.Chunk{Text: text, Source: source, Vector: vector}
}

func mustUpsert(t *testing.T, store *Store, chunks ...*core.Chunk) {
	t.Helper()
	_, err := store.Upsert(context.Background(), chunks...)
	require.NoError(t, err)
}

func TestStoreUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("writes both layers and derives IDs", func(t *testing.T) {
		store, durable := newTestStore(t)
		chunk := testChunk("a", "hello", []float32{1, 0})

		degraded, err := store.Upsert(ctx, chunk)
		require.NoError(t, err)
		assert.False(t, degraded)
		assert.Equal(t, core.ChunkID("a", "hello"), chunk.Id)

		fromDurable, err := durable.inner.GetChunks(ctx, chunk.Id)
		require.NoError(t, err)
		assert.Len(t, fromDurable, 1)

		fromMirror, err := store.Mirror().GetChunks(ctx, chunk.Id)
		require.NoError(t, err)
		assert.Len(t, fromMirror, 1)
	})

	t.Run("rejects invalid chunks", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.Upsert(ctx, testChunk("a", "", []float32{1}))
		assert.ErrorIs(t, err, core.ErrEmptyText)
	})

	t.Run("durable failure degrades to mirror and is reported", func(t *testing.T) {
		store, durable := newTestStore(t)
		durable.fail = true

		chunk := testChunk("a", "hello", []float32{1, 0})
		degraded, err := store.Upsert(ctx, chunk)
		require.NoError(t, err)
		assert.True(t, degraded)

		fromMirror, err := store.Mirror().GetChunks(ctx, chunk.Id)
		require.NoError(t, err)
		assert.Len(t, fromMirror, 1)
	})
}

func TestStoreSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("durable serves when healthy", func(t *testing.T) {
		store, _ := newTestStore(t)
		mustUpsert(t, store, testChunk("a", "hello", []float32{1, 0}))

		resp, err := store.Search(ctx, []float32{1, 0}, 0.5, 10, nil)
		require.NoError(t, err)
		assert.Len(t, resp.Results, 1)
		assert.False(t, resp.Degraded)
	})

	t.Run("mirror serves when durable fails", func(t *testing.T) {
		store, durable := newTestStore(t)
		mustUpsert(t, store, testChunk("a", "hello", []float32{1, 0}))
		durable.fail = true

		resp, err := store.Search(ctx, []float32{1, 0}, 0.5, 10, nil)
		require.NoError(t, err)
		assert.Len(t, resp.Results, 1)
		assert.True(t, resp.Degraded)
	})

	t.Run("invalid filter is rejected", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.Search(ctx, []float32{1, 0}, 0, 10, Filter{"k": ""})
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("empty corpus yields empty results", func(t *testing.T) {
		store, _ := newTestStore(t)
		resp, err := store.Search(ctx, []float32{1, 0}, 0, 10, nil)
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
	})
}

func TestStoreSearchMulti(t *testing.T) {
	ctx := context.Background()

	t.Run("multi-match bonus and flag", func(t *testing.T) {
		store, _ := newTestStore(t)
		mustUpsert(t, store,
			testChunk("a", "both variants find me", []float32{1, 0}),
			testChunk("a", "only the second", []float32{0, 1}))

		// First vector matches chunk one, second vector matches both.
		resp, err := store.SearchMulti(ctx, [][]float32{
			{1, 0},
			{0.7, 0.7},
		}, 0.5, 10, nil)
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)

		top := resp.Results[0]
		assert.True(t, top.MultiMatch)
		// Max score 1.0 from the exact match plus the bonus, capped at 1.0.
		assert.InDelta(t, 1.0, float64(top.Score), 1e-6)

		assert.False(t, resp.Results[1].MultiMatch)
	})

	t.Run("bonus arithmetic below the cap", func(t *testing.T) {
		store, _ := newTestStore(t)
		mustUpsert(t, store, testChunk("a", "hello", []float32{1, 0}))

		// Both vectors at ~45 degrees, similarity ~0.707 each.
		resp, err := store.SearchMulti(ctx, [][]float32{
			{0.7, 0.7},
			{0.7, 0.7},
		}, 0.5, 10, nil)
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.True(t, resp.Results[0].MultiMatch)
		assert.InDelta(t, 0.70710678+DefaultMultiMatchBonus, float64(resp.Results[0].Score), 1e-4)
	})

	t.Run("no vectors yields empty", func(t *testing.T) {
		store, _ := newTestStore(t)
		resp, err := store.SearchMulti(ctx, nil, 0, 10, nil)
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
	})

	t.Run("truncates to limit deterministically", func(t *testing.T) {
		store, _ := newTestStore(t)
		mustUpsert(t, store,
			testChunk("a", "first", []float32{1, 0}),
			testChunk("a", "second", []float32{1, 0}),
			testChunk("a", "third", []float32{1, 0}))

		first, err := store.SearchMulti(ctx, [][]float32{{1, 0}}, 0.5, 2, nil)
		require.NoError(t, err)
		require.Len(t, first.Results, 2)

		second, err := store.SearchMulti(ctx, [][]float32{{1, 0}}, 0.5, 2, nil)
		require.NoError(t, err)
		require.Len(t, second.Results, 2)

		// Equal scores; ID tie-break keeps the order stable.
		assert.Equal(t, first.Results[0].Chunk.Id, second.Results[0].Chunk.Id)
		assert.Equal(t, first.Results[1].Chunk.Id, second.Results[1].Chunk.Id)
		assert.Less(t, uint64(first.Results[0].Chunk.Id), uint64(first.Results[1].Chunk.Id))
	})
}

func TestStoreDeleteBySource(t *testing.T) {
	ctx := context.Background()

	t.Run("removes from both layers", func(t *testing.T) {
		store, durable := newTestStore(t)
		mustUpsert(t, store,
			testChunk("a", "one", []float32{1}),
			testChunk("a", "two", []float32{1}),
			testChunk("b", "three", []float32{1}))

		count, err := store.DeleteBySource(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		durableCount, _ := durable.inner.Count(ctx)
		mirrorCount, _ := store.Mirror().Count(ctx)
		assert.Equal(t, 1, durableCount)
		assert.Equal(t, 1, mirrorCount)
	})

	t.Run("idempotent", func(t *testing.T) {
		store, _ := newTestStore(t)
		mustUpsert(t, store, testChunk("a", "one", []float32{1}))

		count, err := store.DeleteBySource(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = store.DeleteBySource(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("mirror count serves when durable fails", func(t *testing.T) {
		store, durable := newTestStore(t)
		mustUpsert(t, store, testChunk("a", "one", []float32{1}))
		durable.fail = true

		count, err := store.DeleteBySource(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestStoreWarm(t *testing.T) {
	ctx := context.Background()
	durable := &flakyRepository{inner: NewMirror()}
	require.NoError(t, durable.PutChunks(ctx,
		chunkWithVector(1, "a", []float32{1, 0}),
		chunkWithVector(2, "b", []float32{0, 1})))

	store, err := NewStore(durable, "test")
	require.NoError(t, err)
	require.NoError(t, store.Warm(ctx))

	count, _ := store.Mirror().Count(ctx)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, store.PredominantDimension())
}

func TestStoreStats(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	mustUpsert(t, store,
		testChunk("a", "one", []float32{1, 0}),
		testChunk("b", "two", []float32{1, 0, 0}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, 2, stats.TotalSources)
	assert.Equal(t, map[int]int{2: 1, 3: 1}, stats.Dimensions)
	assert.Equal(t, "test", stats.BackendKind)
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/ai/mock"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
)

type engineHarness struct {
	store    *storage.Store
	provider *mock.MockProvider
	lexical  *LexicalIndex
	engine   *Engine
}

func newEngineHarness(t *testing.T, opts ...Option) *engineHarness {
	t.Helper()

	provider := mock.NewMockProvider("primary", 3)
	orchestrator, err := ai.NewOrchestrator([]ai.EmbeddingProvider{provider})
	require.NoError(t, err)

	store, err := storage.NewStore(storage.NewMirror(), "memory")
	require.NoError(t, err)

	lexical := NewLexicalIndex()
	engine, err := NewEngine(store, orchestrator, lexical, opts...)
	require.NoError(t, err)

	return &engineHarness{
		store:    store,
		provider: provider,
		lexical:  lexical,
		engine:   engine,
	}
}

// queryVector pins the embedding returned for every variant of the query.
func (h *engineHarness) queryVector(vector []float32) {
	h.provider.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = vector
		}
		return vectors, nil
	}
}

func (h *engineHarness) add(t *testing.T, id uint64, text string, vector []float32) {
	t.Helper()
	chunk := &core.Chunk{
		Id:     core.ID(id),
		Text:   text,
		Source: "doc.txt",
		Vector: vector,
	}
	_, err := h.store.Upsert(context.Background(), chunk)
	require.NoError(t, err)
	h.lexical.Index(chunk)
}

func TestNewEngine(t *testing.T) {
	h := newEngineHarness(t)

	t.Run("requires store", func(t *testing.T) {
		_, err := NewEngine(nil, nil, nil)
		assert.ErrorIs(t, err, ErrStoreRequired)
	})

	t.Run("rejects bad fusion weights", func(t *testing.T) {
		_, err := NewEngine(h.store, nil, nil)
		assert.ErrorIs(t, err, ErrOrchestratorRequired)
	})

	t.Run("rejects invalid options", func(t *testing.T) {
		orchestrator, err := ai.NewOrchestrator([]ai.EmbeddingProvider{mock.NewMockProvider("m", 3)})
		require.NoError(t, err)

		_, err = NewEngine(h.store, orchestrator, h.lexical, WithFusionWeights(0, 1))
		assert.ErrorIs(t, err, ErrInvalidWeights)

		_, err = NewEngine(h.store, orchestrator, h.lexical, WithRerankWindow(0))
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})
}

func TestSearchHybridFusion(t *testing.T) {
	h := newEngineHarness(t)
	h.add(t, 1, "courier lost the package", []float32{1, 0, 0})
	h.queryVector([]float32{1, 0, 0})

	resp, err := h.engine.Search(context.Background(), Request{Query: "courier lost", TopK: 5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	// Matched both ways: perfect lexical hit times the boost, capped.
	result := resp.Results[0]
	assert.Equal(t, core.ID(1), result.Chunk.Id)
	assert.Equal(t, core.SearchTypeHybrid, result.SearchType)
	assert.InDelta(t, 1.0, result.Score, 1e-6)
	assert.False(t, resp.Degraded)
}

func TestSearchLexicalOnly(t *testing.T) {
	h := newEngineHarness(t)
	h.add(t, 1, "refund refund refund delayed", []float32{0, 1, 0})
	h.add(t, 2, "refund process question answer", []float32{0, 0, 1})
	// Query vector is orthogonal to every chunk, so nothing clears the
	// semantic threshold and the lexical side carries the search.
	h.queryVector([]float32{1, 0, 0})

	lexHits := h.lexical.Search("refund", 10)
	require.Len(t, lexHits, 2)

	resp, err := h.engine.Search(context.Background(), Request{Query: "refund", TopK: 5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.False(t, resp.Degraded)

	for i, result := range resp.Results {
		assert.Equal(t, core.SearchTypeLexical, result.SearchType)
		assert.Equal(t, lexHits[i].ID, result.Chunk.Id)
		assert.InDelta(t, min(lexHits[i].Score*DefaultLexicalBoost, 1.0), result.Score, 1e-6)
	}
	// The runner-up stays under the cap so the boost is visible.
	assert.Less(t, resp.Results[1].Score, float32(1.0))
	assert.Greater(t, resp.Results[1].Score, lexHits[1].Score)
}

func TestSearchSemanticOnly(t *testing.T) {
	h := newEngineHarness(t)
	h.add(t, 1, "courier lost the package", []float32{0.8, 0.6, 0})
	h.queryVector([]float32{1, 0, 0})

	resp, err := h.engine.Search(context.Background(), Request{Query: "wombat", TopK: 5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	// Semantic-only hits keep the raw similarity.
	result := resp.Results[0]
	assert.Equal(t, core.SearchTypeSemantic, result.SearchType)
	assert.InDelta(t, 0.8, result.Score, 1e-6)
}

func TestSearchFusionOrdering(t *testing.T) {
	// One chunk only the lexical side finds, one only the semantic side
	// finds, in the same query. The fused ranking is pure arithmetic: the
	// lexical hit scores min(bm25*boost, 1.0), the semantic hit keeps its
	// raw similarity of 0.8.
	seed := func(t *testing.T, h *engineHarness) {
		h.add(t, 1, "refund delayed again", []float32{0, 1, 0})
		h.add(t, 2, "kargo gecikti", []float32{0.8, 0.6, 0})
		h.queryVector([]float32{1, 0, 0})
	}

	t.Run("boosted lexical hit outranks semantic", func(t *testing.T) {
		h := newEngineHarness(t)
		seed(t, h)

		resp, err := h.engine.Search(context.Background(), Request{Query: "refund", TopK: 5})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)

		// Sole lexical match normalizes to 1.0, boosted and capped at 1.0.
		assert.Equal(t, core.ID(1), resp.Results[0].Chunk.Id)
		assert.Equal(t, core.SearchTypeLexical, resp.Results[0].SearchType)
		assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)

		assert.Equal(t, core.ID(2), resp.Results[1].Chunk.Id)
		assert.Equal(t, core.SearchTypeSemantic, resp.Results[1].SearchType)
		assert.InDelta(t, 0.8, resp.Results[1].Score, 1e-6)
	})

	t.Run("weights below the raw similarity flip the order", func(t *testing.T) {
		h := newEngineHarness(t, WithFusionWeights(0.7, 1.2))
		seed(t, h)

		resp, err := h.engine.Search(context.Background(), Request{Query: "refund", TopK: 5})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)

		// Lexical 1.0*0.7 against raw semantic 0.8.
		assert.Equal(t, core.ID(2), resp.Results[0].Chunk.Id)
		assert.InDelta(t, 0.8, resp.Results[0].Score, 1e-6)
		assert.Equal(t, core.ID(1), resp.Results[1].Chunk.Id)
		assert.InDelta(t, 0.7, resp.Results[1].Score, 1e-6)
	})
}

func TestSearchMetadataFilter(t *testing.T) {
	h := newEngineHarness(t)
	chunk := &core.Chunk{
		Id:       core.ID(1),
		Text:     "courier lost the package",
		Source:   "doc.txt",
		Vector:   []float32{0, 1, 0},
		Metadata: map[string]string{"lang": "en"},
	}
	_, err := h.store.Upsert(context.Background(), chunk)
	require.NoError(t, err)
	h.lexical.Index(chunk)
	h.queryVector([]float32{1, 0, 0})

	resp, err := h.engine.Search(context.Background(), Request{
		Query:  "courier",
		TopK:   5,
		Filter: storage.Filter{"lang": "tr"},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	resp, err = h.engine.Search(context.Background(), Request{
		Query:  "courier",
		TopK:   5,
		Filter: storage.Filter{"lang": "en"},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
}

func TestSearchDegradedSemantic(t *testing.T) {
	h := newEngineHarness(t)
	h.add(t, 1, "courier lost the package", []float32{1, 0, 0})
	h.provider.EmbedTextsFunc = func(_ context.Context, _ []string) ([][]float32, error) {
		return nil, errors.New("provider offline")
	}

	resp, err := h.engine.Search(context.Background(), Request{Query: "courier", TopK: 5})
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, core.SearchTypeLexical, resp.Results[0].SearchType)
}

func TestSearchEdgeCases(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		h := newEngineHarness(t)
		resp, err := h.engine.Search(context.Background(), Request{Query: "", TopK: 5})
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
		assert.False(t, resp.Degraded)
	})

	t.Run("invalid topK", func(t *testing.T) {
		h := newEngineHarness(t)
		_, err := h.engine.Search(context.Background(), Request{Query: "courier"})
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("invalid filter", func(t *testing.T) {
		h := newEngineHarness(t)
		_, err := h.engine.Search(context.Background(), Request{
			Query:  "courier",
			TopK:   5,
			Filter: storage.Filter{"": "x"},
		})
		assert.ErrorIs(t, err, storage.ErrInvalidFilter)
	})

	t.Run("empty corpus", func(t *testing.T) {
		h := newEngineHarness(t)
		resp, err := h.engine.Search(context.Background(), Request{Query: "courier", TopK: 5})
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
	})
}

func TestSearchTopKAndOrdering(t *testing.T) {
	h := newEngineHarness(t)
	h.add(t, 1, "alpha entry", []float32{0.9, float32(0.43588989), 0})
	h.add(t, 2, "beta entry", []float32{0.8, 0.6, 0})
	h.add(t, 3, "gamma entry", []float32{0.7, float32(0.71414284), 0})
	h.queryVector([]float32{1, 0, 0})

	resp, err := h.engine.Search(context.Background(), Request{Query: "wombat", TopK: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, core.ID(1), resp.Results[0].Chunk.Id)
	assert.Equal(t, core.ID(2), resp.Results[1].Chunk.Id)
	assert.GreaterOrEqual(t, resp.Results[0].Score, resp.Results[1].Score)
}

func TestSearchVariantExpansion(t *testing.T) {
	h := newEngineHarness(t)
	// Similarity 0.55 clears the threshold only because synonym variants
	// relax it from 0.60 to 0.50.
	h.add(t, 1, "unrelated wording entirely", []float32{0.55, float32(0.83516465), 0})
	h.queryVector([]float32{1, 0, 0})

	resp, err := h.engine.Search(context.Background(), Request{Query: "kurye tavir sorunu", TopK: 5})
	require.NoError(t, err)

	require.Greater(t, len(resp.Variants), 1)
	assert.Equal(t, "kurye tavir sorunu", resp.Variants[0])
	require.Len(t, resp.Results, 1)

	// Every variant embeds to the same vector here, so the chunk also
	// earns the multi-match bonus on top of its 0.55 similarity.
	assert.True(t, resp.Results[0].MultiMatch)
	assert.InDelta(t, 0.65, resp.Results[0].Score, 1e-6)
}

func TestSearchRerank(t *testing.T) {
	t.Run("reranker reorders window", func(t *testing.T) {
		scorer := mock.NewMockScorer()
		scorer.ScorePairFunc = func(_ context.Context, _, text string) (float32, error) {
			if text == "beta entry" {
				return 0.95, nil
			}
			return 0.1, nil
		}

		h := newEngineHarness(t, WithReranker(NewCrossEncoderReranker(scorer, nil)))
		h.add(t, 1, "alpha entry", []float32{0.9, float32(0.43588989), 0})
		h.add(t, 2, "beta entry", []float32{0.8, 0.6, 0})
		h.queryVector([]float32{1, 0, 0})

		resp, err := h.engine.Search(context.Background(), Request{Query: "wombat", TopK: 5, Rerank: true})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)

		assert.Equal(t, core.ID(2), resp.Results[0].Chunk.Id)
		assert.True(t, resp.Results[0].Reranked)
		assert.InDelta(t, 0.95, resp.Results[0].CrossScore, 1e-6)
		assert.False(t, resp.Degraded)
	})

	t.Run("scorer failure keeps fused order", func(t *testing.T) {
		scorer := mock.NewMockScorer()
		scorer.ScorePairFunc = func(_ context.Context, _, _ string) (float32, error) {
			return 0, errors.New("model offline")
		}

		h := newEngineHarness(t, WithReranker(NewCrossEncoderReranker(scorer, nil)))
		h.add(t, 1, "alpha entry", []float32{0.9, float32(0.43588989), 0})
		h.add(t, 2, "beta entry", []float32{0.8, 0.6, 0})
		h.queryVector([]float32{1, 0, 0})

		resp, err := h.engine.Search(context.Background(), Request{Query: "wombat", TopK: 5, Rerank: true})
		require.NoError(t, err)

		assert.True(t, resp.Degraded)
		assert.Equal(t, core.ID(1), resp.Results[0].Chunk.Id)
	})

	t.Run("no reranker keeps fused order", func(t *testing.T) {
		h := newEngineHarness(t)
		h.add(t, 1, "alpha entry", []float32{0.9, float32(0.43588989), 0})
		h.queryVector([]float32{1, 0, 0})

		resp, err := h.engine.Search(context.Background(), Request{Query: "wombat", TopK: 5, Rerank: true})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.False(t, resp.Results[0].Reranked)
	})
}

func TestSearchWithMonitor(t *testing.T) {
	h := newEngineHarness(t)
	h.add(t, 1, "courier lost the package", []float32{1, 0, 0})
	h.queryVector([]float32{1, 0, 0})

	monitor := &recordingMonitor{}
	resp, err := h.engine.SearchWithMonitor(context.Background(), Request{Query: "courier", TopK: 5}, monitor)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	assert.Equal(t, "courier", monitor.started)
	assert.NotEmpty(t, monitor.variants)
	assert.Equal(t, 1, monitor.hybridHits)
	assert.Len(t, monitor.finished, 1)
}

type recordingMonitor struct {
	noopMonitor
	started    string
	variants   []string
	hybridHits int
	finished   []*core.SearchResult
}

func (r *recordingMonitor) Start(query string)                   { r.started = query }
func (r *recordingMonitor) AfterExpansion(variants []string)     { r.variants = variants }
func (r *recordingMonitor) HybridHit(_ *core.SearchResult)       { r.hybridHits++ }
func (r *recordingMonitor) Finish(results []*core.SearchResult)  { r.finished = results }

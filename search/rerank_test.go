package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/ai/mock"
	"github.com/poiesic/retrievit/core"
)

func fusedResult(id uint64, text string, score float32) *core.SearchResult {
	return &core.SearchResult{
		Chunk:      &core.Chunk{Id: core.ID(id), Text: text, Source: "a.txt"},
		Score:      score,
		SearchType: core.SearchTypeHybrid,
	}
}

func TestCrossEncoderReranker(t *testing.T) {
	t.Run("reorders by cross score", func(t *testing.T) {
		scorer := mock.NewMockScorer()
		scorer.ScorePairFunc = func(_ context.Context, _, text string) (float32, error) {
			if text == "weak fusion strong relevance" {
				return 0.9, nil
			}
			return 0.2, nil
		}
		reranker := NewCrossEncoderReranker(scorer, nil)

		results, err := reranker.Rerank(context.Background(), "query", []*core.SearchResult{
			fusedResult(1, "strong fusion weak relevance", 0.95),
			fusedResult(2, "weak fusion strong relevance", 0.40),
		})
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, core.ID(2), results[0].Chunk.Id)
		assert.InDelta(t, 0.9, results[0].CrossScore, 1e-6)
		assert.True(t, results[0].Reranked)
		assert.Equal(t, core.ID(1), results[1].Chunk.Id)
		assert.True(t, results[1].Reranked)
	})

	t.Run("equal scores keep fusion order", func(t *testing.T) {
		reranker := NewCrossEncoderReranker(mock.NewMockScorer(), nil)

		results, err := reranker.Rerank(context.Background(), "query", []*core.SearchResult{
			fusedResult(7, "first", 0.9),
			fusedResult(3, "second", 0.8),
		})
		require.NoError(t, err)
		assert.Equal(t, core.ID(7), results[0].Chunk.Id)
		assert.Equal(t, core.ID(3), results[1].Chunk.Id)
	})

	t.Run("scoring failure aborts", func(t *testing.T) {
		scorer := mock.NewMockScorer()
		scorer.ScorePairFunc = func(_ context.Context, _, _ string) (float32, error) {
			return 0, errors.New("model offline")
		}
		reranker := NewCrossEncoderReranker(scorer, nil)

		results, err := reranker.Rerank(context.Background(), "query", []*core.SearchResult{
			fusedResult(1, "text", 0.9),
		})
		assert.Error(t, err)
		assert.Nil(t, results)
	})
}

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
	"log/slog"
	"slices"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
)

// Reranker reorders a candidate window by query relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []*core.SearchResult) ([]*core.SearchResult, error)
}

// CrossEncoderReranker scores each query/text pair with a relevance model
// and reorders the window by that score. A scoring failure on any pair
// aborts the whole rerank; callers fall back to the fused order.
type CrossEncoderReranker struct {
	scorer ai.RelevanceScorer
	logger *slog.Logger
}

// NewCrossEncoderReranker wraps the given scorer.
func NewCrossEncoderReranker(scorer ai.RelevanceScorer, logger *slog.Logger) *CrossEncoderReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossEncoderReranker{
		scorer: scorer,
		logger: logger.With("component", "reranker"),
	}
}

var _ Reranker = (*CrossEncoderReranker)(nil)

// Rerank scores every result against the query and returns them ordered
// by cross score, best first. Ties keep their incoming order.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, results []*core.SearchResult) ([]*core.SearchResult, error) {
	for _, result := range results {
		score, err := r.scorer.ScorePair(ctx, query, result.Chunk.Text)
		if err != nil {
			r.logger.Warn("relevance scoring failed", "chunkId", result.Chunk.Id, "error", err)
			return nil, err
		}
		result.CrossScore = score
		result.Reranked = true
	}

	reranked := slices.Clone(results)
	slices.SortStableFunc(reranked, func(a, b *core.SearchResult) int {
		if a.CrossScore > b.CrossScore {
			return -1
		}
		if a.CrossScore < b.CrossScore {
			return 1
		}
		return 0
	})
	return reranked, nil
}

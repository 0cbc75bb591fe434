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


package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/retrievit/core"
)

const (
	// DefaultMultiMatchBonus is added to a chunk's best score when more
	// than one query variant finds it.
	DefaultMultiMatchBonus = 0.1

	// upsertBatchSize bounds a single durable write transaction.
	upsertBatchSize = 128
)

// SearchResponse carries ranked results plus how they were obtained.
type SearchResponse struct {
	Results []*core.SearchResult

	// Degraded reports that the durable backend failed and the mirror
	// served at least part of the search.
	Degraded bool
}

// Stats summarizes the stored corpus.
type Stats struct {
	TotalChunks  int
	TotalSources int

	// Dimensions maps vector width to chunk count.
	Dimensions map[int]int

	BackendKind string
}

// Store is the write-through composition of a durable chunk repository and
// an in-memory mirror. Reads prefer the durable backend and degrade to the
// mirror; writes land in both layers.
//
// Store is safe for concurrent use.
type Store struct {
	durable     ChunkRepository
	mirror      *Mirror
	backendKind string
	bonus       float32
	logger      *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store) error

// WithMultiMatchBonus overrides the bonus added to multi-variant matches.
func WithMultiMatchBonus(bonus float32) StoreOption {
	return func(s *Store) error {
		if bonus < 0 || bonus > 1 {
			return fmt.Errorf("multi-match bonus must be in [0, 1], got %g", bonus)
		}
		s.bonus = bonus
		return nil
	}
}

// WithStoreLogger sets the logger used by the store.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) error {
		s.logger = logger.With("component", "store")
		return nil
	}
}

// NewStore creates a store over the given durable repository. backendKind
// names the durable implementation for stats reporting ("badger",
// "badger-memory").
func NewStore(durable ChunkRepository, backendKind string, opts ...StoreOption) (*Store, error) {
	if durable == nil {
		return nil, fmt.Errorf("durable repository is required")
	}

	s := &Store{
		durable:     durable,
		mirror:      NewMirror(),
		backendKind: backendKind,
		bonus:       DefaultMultiMatchBonus,
		logger:      slog.Default().With("component", "store"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Warm loads the durable corpus into the mirror. Called once at open, before
// the store serves reads.
func (s *Store) Warm(ctx context.Context) error {
	count := 0
	err := s.durable.ForEach(ctx, func(chunk *core.Chunk) error {
		count++
		return s.mirror.PutChunks(ctx, chunk)
	})
	if err != nil {
		return fmt.Errorf("warming mirror: %w", err)
	}
	s.logger.Info("mirror warmed", "chunks", count)
	return nil
}

// Mirror exposes the in-memory layer. The orchestrator uses it as a
// dimension source; search uses it for lexical index rebuilds.
func (s *Store) Mirror() *Mirror {
	return s.mirror
}

// PredominantDimension reports the most common stored dimension, or 0 when
// the corpus is empty.
func (s *Store) PredominantDimension() int {
	return s.mirror.PredominantDimension()
}

// Upsert validates and persists chunks to both layers. Chunks without an ID
// get a content-derived one. A durable-layer failure degrades to mirror-only
// persistence rather than failing the call; the returned flag reports it so
// callers can surface the degradation.
func (s *Store) Upsert(ctx context.Context, chunks ...*core.Chunk) (bool, error) {
	if len(chunks) == 0 {
		return false, nil
	}

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return false, err
		}
		if chunk.Id == 0 {
			chunk.Id = core.ChunkID(chunk.Source, chunk.Text)
		}
		if chunk.InsertedAt.IsZero() {
			chunk.InsertedAt = now
		}
		chunk.UpdatedAt = now
	}

	var durableErr error
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		if err := s.durable.PutChunks(ctx, chunks[start:end]...); err != nil {
			durableErr = err
			break
		}
	}
	if durableErr != nil {
		s.logger.Warn("durable upsert failed, keeping mirror copy", "err", durableErr)
	}

	if err := s.mirror.PutChunks(ctx, chunks...); err != nil {
		if durableErr != nil {
			return false, fmt.Errorf("%w: %w", ErrStoreUnreachable, durableErr)
		}
		return false, err
	}
	return durableErr != nil, nil
}

// GetChunks retrieves chunks by ID, preferring the durable backend.
func (s *Store) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	chunks, err := s.durable.GetChunks(ctx, ids...)
	if err != nil {
		s.logger.Warn("durable read failed, serving from mirror", "err", err)
		return s.mirror.GetChunks(ctx, ids...)
	}
	return chunks, nil
}

// Search runs a single-vector similarity search. The durable backend serves
// when healthy; on error the mirror serves and the response is flagged
// degraded. Both layers failing surfaces ErrStoreUnreachable.
func (s *Store) Search(ctx context.Context, vector []float32, minSimilarity float32, limit int, filter Filter) (*SearchResponse, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidQuery)
	}

	results, err := s.durable.FindSimilar(ctx, vector, minSimilarity, limit, filter)
	if err == nil {
		return &SearchResponse{Results: results}, nil
	}
	s.logger.Warn("durable search failed, degrading to mirror", "err", err)

	results, mirrorErr := s.mirror.FindSimilar(ctx, vector, minSimilarity, limit, filter)
	if mirrorErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnreachable, mirrorErr)
	}
	return &SearchResponse{Results: results, Degraded: true}, nil
}

// SearchMulti searches once per query vector in parallel and merges by
// chunk ID. A chunk found under more than one vector keeps its maximum
// score plus the multi-match bonus, capped at 1.0, and is flagged
// MultiMatch. Merged results are re-sorted and truncated to limit.
func (s *Store) SearchMulti(ctx context.Context, vectors [][]float32, minSimilarity float32, limit int, filter Filter) (*SearchResponse, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return &SearchResponse{Results: []*core.SearchResult{}}, nil
	}

	var (
		mu       sync.Mutex
		merged   = make(map[core.ID]*core.SearchResult)
		seen     = make(map[core.ID]int)
		degraded bool
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, vector := range vectors {
		g.Go(func() error {
			resp, err := s.Search(gctx, vector, minSimilarity, limit, filter)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if resp.Degraded {
				degraded = true
			}
			for _, result := range resp.Results {
				id := result.Chunk.Id
				seen[id]++
				if existing, ok := merged[id]; !ok || result.Score > existing.Score {
					merged[id] = result
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]*core.SearchResult, 0, len(merged))
	for id, result := range merged {
		if seen[id] > 1 {
			result.Score = min(result.Score+s.bonus, 1.0)
			result.MultiMatch = true
		}
		results = append(results, result)
	}
	SortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return &SearchResponse{Results: results, Degraded: degraded}, nil
}

// DeleteBySource removes a source's chunks from both layers. The durable
// count is authoritative when available. Removing an absent source yields 0.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int, error) {
	durableCount, durableErr := s.durable.DeleteBySource(ctx, source)
	if durableErr != nil {
		s.logger.Warn("durable delete-by-source failed", "source", source, "err", durableErr)
	}

	mirrorCount, mirrorErr := s.mirror.DeleteBySource(ctx, source)
	if mirrorErr != nil && durableErr != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnreachable, durableErr)
	}

	if durableErr == nil {
		return durableCount, nil
	}
	return mirrorCount, nil
}

// DeleteChunks removes chunks by ID from both layers.
func (s *Store) DeleteChunks(ctx context.Context, ids ...core.ID) error {
	durableErr := s.durable.DeleteChunks(ctx, ids...)
	if durableErr != nil {
		s.logger.Warn("durable delete failed", "err", durableErr)
	}
	if err := s.mirror.DeleteChunks(ctx, ids...); err != nil && durableErr != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnreachable, durableErr)
	}
	return nil
}

// Stats reports corpus totals from the mirror, which tracks the durable
// contents after Warm.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.mirror.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalChunks:  total,
		TotalSources: s.mirror.SourceCount(),
		Dimensions:   s.mirror.DimensionHistogram(),
		BackendKind:  s.backendKind,
	}, nil
}

// Close closes the durable backend.
func (s *Store) Close() error {
	return s.durable.Close()
}

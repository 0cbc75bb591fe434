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
	"slices"
	"sync"
	"time"

	"github.com/poiesic/retrievit/core"
)

// Mirror is an in-process ChunkRepository holding the full corpus in memory.
// It serves as the fallback read path when the durable backend errors and
// maintains an incremental dimension histogram for query provider selection.
//
// Mirror is safe for concurrent use.
type Mirror struct {
	mu      sync.RWMutex
	chunks  map[core.ID]*core.Chunk
	sources map[string]map[core.ID]struct{}
	dims    map[int]int
}

var _ ChunkRepository = (*Mirror)(nil)

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		chunks:  make(map[core.ID]*core.Chunk),
		sources: make(map[string]map[core.ID]struct{}),
		dims:    make(map[int]int),
	}
}

// PutChunks inserts or replaces chunks by ID.
func (m *Mirror) PutChunks(_ context.Context, chunks ...*core.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if chunk.InsertedAt.IsZero() {
			chunk.InsertedAt = now
		}
		if chunk.UpdatedAt.IsZero() {
			chunk.UpdatedAt = chunk.InsertedAt
		}
		m.removeLocked(chunk.Id)
		m.chunks[chunk.Id] = chunk
		if m.sources[chunk.Source] == nil {
			m.sources[chunk.Source] = make(map[core.ID]struct{})
		}
		m.sources[chunk.Source][chunk.Id] = struct{}{}
		m.dims[chunk.Dimension()]++
	}
	return nil
}

// removeLocked unlinks a chunk from all indexes. Caller holds the lock.
func (m *Mirror) removeLocked(id core.ID) {
	old, ok := m.chunks[id]
	if !ok {
		return
	}
	delete(m.chunks, id)
	if ids := m.sources[old.Source]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.sources, old.Source)
		}
	}
	dim := old.Dimension()
	if m.dims[dim] <= 1 {
		delete(m.dims, dim)
	} else {
		m.dims[dim]--
	}
}

// GetChunks retrieves chunks by their IDs, skipping missing ones.
func (m *Mirror) GetChunks(_ context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*core.Chunk
	for _, id := range ids {
		if chunk, ok := m.chunks[id]; ok {
			result = append(result, chunk)
		}
	}
	return result, nil
}

// DeleteChunks removes chunks by their IDs. Missing IDs are ignored.
func (m *Mirror) DeleteChunks(_ context.Context, ids ...core.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		m.removeLocked(id)
	}
	return nil
}

// DeleteBySource removes every chunk with the given source.
func (m *Mirror) DeleteBySource(_ context.Context, source string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.sources[source]
	count := len(ids)
	for id := range ids {
		m.removeLocked(id)
	}
	return count, nil
}

// FindSimilar scores every same-dimension chunk against the vector.
func (m *Mirror) FindSimilar(_ context.Context, vector []float32, minSimilarity float32, limit int, filter Filter) ([]*core.SearchResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var results []*core.SearchResult
	for _, chunk := range m.chunks {
		if chunk.Dimension() != len(vector) {
			continue
		}
		if !filter.Matches(chunk.Metadata) {
			continue
		}
		similarity := CosineSimilarity(vector, chunk.Vector)
		if similarity >= minSimilarity {
			results = append(results, &core.SearchResult{
				Chunk:      chunk,
				Score:      similarity,
				SearchType: core.SearchTypeSemantic,
			})
		}
	}
	m.mu.RUnlock()

	SortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ForEach visits every stored chunk over a consistent snapshot.
func (m *Mirror) ForEach(_ context.Context, fn func(*core.Chunk) error) error {
	m.mu.RLock()
	snapshot := make([]*core.Chunk, 0, len(m.chunks))
	for _, chunk := range m.chunks {
		snapshot = append(snapshot, chunk)
	}
	m.mu.RUnlock()

	for _, chunk := range snapshot {
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored chunks.
func (m *Mirror) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

// SourceCount returns the number of distinct sources.
func (m *Mirror) SourceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sources)
}

// DimensionHistogram returns a copy of the per-dimension chunk counts.
func (m *Mirror) DimensionHistogram() map[int]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	histogram := make(map[int]int, len(m.dims))
	for dim, count := range m.dims {
		histogram[dim] = count
	}
	return histogram
}

// PredominantDimension returns the most common stored dimension, or 0 when
// the mirror is empty. Ties resolve to the smaller dimension so the answer
// is stable.
func (m *Mirror) PredominantDimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best, bestCount := 0, 0
	for dim, count := range m.dims {
		if count > bestCount || (count == bestCount && dim < best) {
			best, bestCount = dim, count
		}
	}
	return best
}

// Close is a no-op; the mirror holds no external resources.
func (m *Mirror) Close() error {
	return nil
}

// SortResults orders by score descending, then chunk ID ascending so equal
// scores rank deterministically.
func SortResults(results []*core.SearchResult) {
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Chunk.Id < b.Chunk.Id {
			return -1
		}
		if a.Chunk.Id > b.Chunk.Id {
			return 1
		}
		return 0
	})
}

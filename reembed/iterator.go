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


package reembed

import (
	"context"

	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
)

const (
	// DefaultBatchSize is the default number of chunks to process in each batch
	DefaultBatchSize = 100
)

// ChunkIterator iterates over stored chunks matching a predicate, in batches.
type ChunkIterator struct {
	store     *storage.Store
	batchSize int
	match     func(*core.Chunk) bool
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks per batch (must be > 0)
// match: selects which chunks are visited; nil visits every chunk
func NewChunkIterator(store *storage.Store, batchSize int, match func(*core.Chunk) bool) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if match == nil {
		match = func(*core.Chunk) bool { return true }
	}

	return &ChunkIterator{
		store:     store,
		batchSize: batchSize,
		match:     match,
	}
}

// Count returns the number of chunks the iterator would visit.
func (it *ChunkIterator) Count(ctx context.Context) (int, error) {
	count := 0
	err := it.store.Mirror().ForEach(ctx, func(chunk *core.Chunk) error {
		if it.match(chunk) {
			count++
		}
		return nil
	})
	return count, err
}

// ForEach iterates over all matching chunks, calling fn for each batch.
// Iteration stops on first error from fn or when all chunks are processed.
// Context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	// Check context before starting
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var chunks []*core.Chunk
	err := it.store.Mirror().ForEach(ctx, func(chunk *core.Chunk) error {
		if it.match(chunk) {
			chunks = append(chunks, chunk)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		// No chunks to process
		return nil
	}

	// Process chunks in batches of batchSize
	for i := 0; i < len(chunks); i += it.batchSize {
		end := i + it.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		if err := fn(chunks[i:end]); err != nil {
			return err
		}

		// Check context after each batch
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}

// MatchProvider returns a predicate selecting chunks whose recorded
// embedding provider equals name.
func MatchProvider(name string) func(*core.Chunk) bool {
	return func(chunk *core.Chunk) bool {
		return chunk.Metadata[core.MetadataProviderKey] == name
	}
}

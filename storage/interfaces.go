package storage

import (
	"context"

	"github.com/poiesic/retrievit/core"
)

// Filter restricts a search to chunks whose metadata contains every listed
// key/value pair. A nil or empty filter matches all chunks.
type Filter map[string]string

// Validate rejects filters with empty keys or values.
func (f Filter) Validate() error {
	for k, v := range f {
		if k == "" || v == "" {
			return ErrInvalidFilter
		}
	}
	return nil
}

// Matches reports whether metadata satisfies every filter pair.
func (f Filter) Matches(metadata map[string]string) bool {
	for k, v := range f {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// ChunkRepository provides operations for managing chunks.
// Implementations must be thread-safe and support concurrent access.
type ChunkRepository interface {
	// PutChunks inserts or replaces chunks by ID.
	// Sets InsertedAt if unset and refreshes UpdatedAt.
	// Mixed-dimension batches are permitted.
	PutChunks(ctx context.Context, chunks ...*core.Chunk) error

	// GetChunks retrieves chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// DeleteChunks removes chunks by their IDs.
	// Missing IDs are ignored.
	DeleteChunks(ctx context.Context, ids ...core.ID) error

	// DeleteBySource removes every chunk whose Source matches exactly and
	// returns the number removed. No match yields 0, not an error.
	DeleteBySource(ctx context.Context, source string) (int, error)

	// FindSimilar finds chunks similar to the given vector.
	// Only chunks whose dimension equals len(vector) are considered;
	// others are silently excluded. Returns chunks with
	// similarity >= minSimilarity matching the filter, up to limit,
	// ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, filter Filter) ([]*core.SearchResult, error)

	// ForEach visits every stored chunk. Used to warm the mirror at open.
	// Iteration stops at the first error from fn.
	ForEach(ctx context.Context, fn func(*core.Chunk) error) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close closes the repository and releases resources.
	Close() error
}

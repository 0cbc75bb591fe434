package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
)

// BatchProcessor handles embedding generation for batches of chunks.
type BatchProcessor struct {
	store          *storage.Store
	orchestrator   *ai.Orchestrator
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(store *storage.Store, orchestrator *ai.Orchestrator, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		store:          store,
		orchestrator:   orchestrator,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates fresh embeddings for a batch of chunks and updates
// them in the store. Vectors are normalized after embedding to ensure
// compatibility with cosine similarity, and each chunk's provider
// metadata is updated to the provider that actually served it.
// The returned flag reports that the batch was persisted mirror-only
// because the durable store was unreachable.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) (bool, error) {
	if len(chunks) == 0 {
		return false, nil
	}

	// Extract text content
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	// Generate embeddings with retry
	var batch *ai.BatchResult
	err := RetryWithBackoff(ctx, func() error {
		var err error
		batch, err = bp.orchestrator.EmbedBatch(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return false, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(batch.Vectors) != len(chunks) {
		return false, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(batch.Vectors))
	}

	// Normalize vectors and record the serving provider
	for i, chunk := range chunks {
		chunk.Vector = NormalizeVector(batch.Vectors[i])
		if chunk.Metadata == nil {
			chunk.Metadata = make(map[string]string, 1)
		}
		chunk.Metadata[core.MetadataProviderKey] = batch.Provider
	}

	mirrorOnly, err := bp.store.Upsert(ctx, chunks...)
	if err != nil {
		return false, fmt.Errorf("failed to update chunks: %w", err)
	}

	return mirrorOnly, nil
}

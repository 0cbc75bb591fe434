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
	"fmt"
	"io"
	"time"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/ai/hash"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Provider selects which chunks to reembed by their recorded embedding
	// provider. Empty selects chunks embedded by the hash fallback.
	Provider string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		Provider:       hash.ProviderName,
	}
}

// Reembedder orchestrates the reembedding of stored chunks.
type Reembedder struct {
	store        *storage.Store
	orchestrator *ai.Orchestrator
	config       *Config
	progress     io.Writer
	processor    *BatchProcessor
	iterator     *ChunkIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(store *storage.Store, orchestrator *ai.Orchestrator, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Provider == "" {
		config.Provider = hash.ProviderName
	}

	processor := NewBatchProcessor(store, orchestrator, config.MaxRetries, config.RetryDelay)
	iterator := NewChunkIterator(store, config.BatchSize, MatchProvider(config.Provider))

	return &Reembedder{
		store:        store,
		orchestrator: orchestrator,
		config:       config,
		progress:     progress,
		processor:    processor,
		iterator:     iterator,
	}
}

// Run executes the reembedding operation.
// Every chunk recorded under the configured provider is reembedded with
// whatever provider the orchestrator currently serves.
// Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) error {
	totalChunks, err := r.iterator.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	if totalChunks == 0 {
		fmt.Fprintf(r.progress, "No chunks recorded under provider %q (0 chunks)\n", r.config.Provider)
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d chunks (batch size: %d)\n",
		totalChunks, r.config.BatchSize)

	// Initialize progress tracker
	tracker := NewProgressTracker(r.progress, totalChunks, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	mirrorOnly := 0

	// Process all chunks in batches
	err = r.iterator.ForEach(ctx, func(chunks []*core.Chunk) error {
		// Process this batch
		degraded, err := r.processor.Process(ctx, chunks)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		if degraded {
			mirrorOnly += len(chunks)
		}

		// Update progress
		processed += len(chunks)
		tracker.Update(processed)

		return nil
	})

	if err != nil {
		return err
	}

	// Finish progress tracking
	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		totalChunks, elapsed.Round(time.Second), float64(totalChunks)/elapsed.Seconds())
	if mirrorOnly > 0 {
		fmt.Fprintf(r.progress, "Warning: %d chunks were updated mirror-only; the durable store was unreachable\n", mirrorOnly)
	}

	return nil
}

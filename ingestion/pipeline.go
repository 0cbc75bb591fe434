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


package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/search"
	"github.com/poiesic/retrievit/storage"
)

// DefaultGroupSize is how many documents one pool worker embeds at a time.
const DefaultGroupSize = 32

// Document is one ingestion input. Id is optional; when zero the chunk id
// is derived from source and text.
type Document struct {
	Id       core.ID
	Text     string
	Source   string
	Metadata map[string]string
}

// Result summarizes one ingestion call.
type Result struct {
	// Accepted is the number of documents stored.
	Accepted int

	// Rejected is the number of documents dropped by validation.
	Rejected int

	// Degraded reports that at least one group fell back from the
	// preferred embedding provider or was stored mirror-only.
	Degraded bool
}

// Pipeline orchestrates the ingestion of documents into a corpus.
// It validates documents, embeds them concurrently in groups, and keeps
// the vector store and the lexical index in step.
type Pipeline struct {
	store        *storage.Store
	orchestrator *ai.Orchestrator
	lexical      *search.LexicalIndex
	pool         *ants.Pool
	groupSize    int
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithGroupSize sets how many documents each worker embeds per call.
// Default is DefaultGroupSize.
func WithGroupSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.groupSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	store *storage.Store,
	orchestrator *ai.Orchestrator,
	lexical *search.LexicalIndex,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if orchestrator == nil {
		return nil, ErrOrchestratorRequired
	}
	if lexical == nil {
		return nil, ErrLexicalIndexRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:        store,
		orchestrator: orchestrator,
		lexical:      lexical,
		pool:         pool,
		groupSize:    DefaultGroupSize,
		logger:       slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest validates the documents, embeds them in concurrent groups, and
// stores the resulting chunks. Malformed documents are dropped and
// counted rather than failing the batch. Embedding or storage failure of
// a group fails the call; documents from groups that completed before
// the failure remain stored and counted.
func (p *Pipeline) Ingest(ctx context.Context, documents []Document) (*Result, error) {
	result := &Result{}

	valid := make([]Document, 0, len(documents))
	for _, doc := range documents {
		if doc.Text == "" || doc.Source == "" {
			p.logger.Debug("rejecting document", "source", doc.Source, "emptyText", doc.Text == "")
			result.Rejected++
			continue
		}
		valid = append(valid, doc)
	}
	if len(valid) == 0 {
		return result, nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for start := 0; start < len(valid); start += p.groupSize {
		group := valid[start:min(start+p.groupSize, len(valid))]

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()

			accepted, degraded, err := p.ingestGroup(ctx, group)

			mu.Lock()
			defer mu.Unlock()
			result.Accepted += accepted
			result.Degraded = result.Degraded || degraded
			if err != nil {
				errs = append(errs, err)
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, submitErr)
			mu.Unlock()
			break
		}
	}
	wg.Wait()

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}
	return result, nil
}

// ingestGroup embeds one group of documents and upserts the chunks.
func (p *Pipeline) ingestGroup(ctx context.Context, group []Document) (int, bool, error) {
	texts := make([]string, len(group))
	for i, doc := range group {
		texts[i] = doc.Text
	}

	batch, err := p.orchestrator.EmbedBatch(ctx, texts)
	if err != nil {
		p.logger.Error("error generating embeddings", "documents", len(texts), "err", err)
		return 0, false, err
	}

	now := time.Now().UTC()
	chunks := make([]*core.Chunk, len(group))
	for i, doc := range group {
		id := doc.Id
		if id == 0 {
			id = core.ChunkID(doc.Source, doc.Text)
		}

		metadata := maps.Clone(doc.Metadata)
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata[core.MetadataProviderKey] = batch.Provider

		chunks[i] = &core.Chunk{
			Id:         id,
			Text:       doc.Text,
			Source:     doc.Source,
			Vector:     batch.Vectors[i],
			Metadata:   metadata,
			InsertedAt: now,
			UpdatedAt:  now,
		}
	}

	mirrorOnly, err := p.store.Upsert(ctx, chunks...)
	if err != nil {
		return 0, batch.Degraded, err
	}
	p.lexical.Index(chunks...)

	return len(chunks), batch.Degraded || mirrorOnly, nil
}

// ReplaceSource atomically swaps the contents of a source: every stored
// chunk with that source is removed, then the documents are ingested
// under it. Document source fields are overwritten with the given name.
func (p *Pipeline) ReplaceSource(ctx context.Context, source string, documents []Document) (*Result, error) {
	if source == "" {
		return nil, ErrSourceRequired
	}

	if _, err := p.RemoveSource(ctx, source); err != nil {
		return nil, err
	}

	docs := make([]Document, len(documents))
	copy(docs, documents)
	for i := range docs {
		docs[i].Source = source
	}
	return p.Ingest(ctx, docs)
}

// RemoveSource deletes every chunk with the given source from the store
// and the lexical index. Returns the number of chunks removed from the
// store. Removing an absent source is not an error.
func (p *Pipeline) RemoveSource(ctx context.Context, source string) (int, error) {
	if source == "" {
		return 0, ErrSourceRequired
	}

	count, err := p.store.DeleteBySource(ctx, source)
	if err != nil {
		return 0, err
	}
	p.lexical.DeleteBySource(source)
	return count, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

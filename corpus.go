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


package retrievit

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/ai/gemini"
	"github.com/poiesic/retrievit/ai/hash"
	"github.com/poiesic/retrievit/ai/openai"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/ingestion"
	"github.com/poiesic/retrievit/reembed"
	"github.com/poiesic/retrievit/rotation"
	"github.com/poiesic/retrievit/search"
	"github.com/poiesic/retrievit/storage"
	"github.com/poiesic/retrievit/storage/badger"
)

// Corpus is the top-level handle over one retrieval corpus: a durable
// chunk store, its in-memory mirror and lexical index, the embedding
// provider chain, and the search and ingestion machinery wired together.
type Corpus struct {
	backend      *badger.Backend
	store        *storage.Store
	lexical      *search.LexicalIndex
	orchestrator *ai.Orchestrator
	rotation     *rotation.Manager
	engine       *search.Engine
	pipeline     *ingestion.Pipeline
	logger       *slog.Logger
}

// CorpusOption configures a Corpus.
type CorpusOption func(*corpusOptions)

type corpusOptions struct {
	aiConfig      *ai.Config
	geminiKeys    []string
	geminiModel   string
	hashDimension int
	providers     []ai.EmbeddingProvider
	inMemory      bool
	logger        *slog.Logger
	searchOpts    []search.Option
	ingestOpts    []ingestion.Option
}

// WithAIConfig sets the OpenAI-compatible provider configuration.
// Without one, no OpenAI-compatible provider joins the chain.
func WithAIConfig(config *ai.Config) CorpusOption {
	return func(o *corpusOptions) {
		o.aiConfig = config
	}
}

// WithGeminiKeys enables the Gemini provider with the given API keys,
// rotated on quota exhaustion. The Gemini provider ranks first in the
// fallback order.
func WithGeminiKeys(keys ...string) CorpusOption {
	return func(o *corpusOptions) {
		o.geminiKeys = keys
	}
}

// WithGeminiModel overrides the Gemini embedding model.
func WithGeminiModel(model string) CorpusOption {
	return func(o *corpusOptions) {
		o.geminiModel = model
	}
}

// WithHashDimension sets the vector width of the deterministic hash
// fallback. Default is hash.DefaultDimension.
func WithHashDimension(dim int) CorpusOption {
	return func(o *corpusOptions) {
		o.hashDimension = dim
	}
}

// WithProviders replaces the config-derived provider chain, in fallback
// order. The hash fallback is still appended last.
func WithProviders(providers ...ai.EmbeddingProvider) CorpusOption {
	return func(o *corpusOptions) {
		o.providers = providers
	}
}

// WithInMemory opens the backend without a directory, for tests and
// ephemeral corpora.
func WithInMemory() CorpusOption {
	return func(o *corpusOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) CorpusOption {
	return func(o *corpusOptions) {
		o.logger = logger
	}
}

// WithSearchOptions forwards options to the search engine.
func WithSearchOptions(opts ...search.Option) CorpusOption {
	return func(o *corpusOptions) {
		o.searchOpts = append(o.searchOpts, opts...)
	}
}

// WithIngestionOptions forwards options to the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) CorpusOption {
	return func(o *corpusOptions) {
		o.ingestOpts = append(o.ingestOpts, opts...)
	}
}

// NewCorpus opens or creates a corpus at filePath and wires every layer.
// The durable store is mirrored into memory and the lexical index is
// rebuilt from it before the corpus is returned.
func NewCorpus(filePath string, opts ...CorpusOption) (*Corpus, error) {
	options := &corpusOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	durable := badger.NewChunkRepository(backend)

	store, err := storage.NewStore(durable, "badger", storage.WithStoreLogger(options.logger))
	if err != nil {
		backend.Close()
		return nil, err
	}
	if err := store.Warm(context.Background()); err != nil {
		backend.Close()
		return nil, err
	}

	// Rebuild the lexical index from the warmed mirror.
	lexical := search.NewLexicalIndex()
	err = store.Mirror().ForEach(context.Background(), func(chunk *core.Chunk) error {
		lexical.Index(chunk)
		return nil
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	c := &Corpus{
		backend: backend,
		store:   store,
		lexical: lexical,
		logger:  options.logger,
	}

	if err := c.wire(options); err != nil {
		backend.Close()
		return nil, err
	}

	return c, nil
}

// wire assembles the provider chain, orchestrator, engine, and pipeline.
func (c *Corpus) wire(options *corpusOptions) error {
	providers := options.providers

	if len(providers) == 0 {
		// Gemini ranks first when keys are configured.
		if len(options.geminiKeys) > 0 {
			rot, err := rotation.NewManager(options.geminiKeys, rotation.WithLogger(c.logger))
			if err != nil {
				return err
			}

			geminiOpts := []gemini.Option{gemini.WithLogger(c.logger)}
			if options.geminiModel != "" {
				geminiOpts = append(geminiOpts, gemini.WithModel(options.geminiModel))
			}
			provider, err := gemini.NewProvider(rot, geminiOpts...)
			if err != nil {
				return err
			}

			c.rotation = rot
			providers = append(providers, provider)
		}

		if options.aiConfig != nil {
			provider, err := openai.NewProvider(options.aiConfig)
			if err != nil {
				return err
			}
			providers = append(providers, provider)
		}
	}

	// The hash fallback always terminates the chain so embedding never
	// hard-fails.
	providers = append(providers, hash.New(options.hashDimension))

	orchestrator, err := ai.NewOrchestrator(providers,
		ai.WithDimensionSource(c.store.Mirror()),
		ai.WithLogger(c.logger))
	if err != nil {
		return err
	}
	c.orchestrator = orchestrator

	searchOpts := append([]search.Option{search.WithLogger(c.logger)}, options.searchOpts...)
	if options.aiConfig != nil && options.aiConfig.ScorerHost != "" && options.aiConfig.ScorerModel != "" {
		scorer, err := openai.NewScorer(options.aiConfig)
		if err != nil {
			return err
		}
		searchOpts = append(searchOpts, search.WithReranker(search.NewCrossEncoderReranker(scorer, c.logger)))
	}

	engine, err := search.NewEngine(c.store, orchestrator, c.lexical, searchOpts...)
	if err != nil {
		return err
	}
	c.engine = engine

	ingestOpts := append([]ingestion.Option{ingestion.WithLogger(c.logger)}, options.ingestOpts...)
	pipeline, err := ingestion.NewPipeline(c.store, orchestrator, c.lexical, ingestOpts...)
	if err != nil {
		return err
	}
	c.pipeline = pipeline

	return nil
}

// Ingest adds documents to the corpus.
func (c *Corpus) Ingest(ctx context.Context, documents []ingestion.Document) (*ingestion.Result, error) {
	return c.pipeline.Ingest(ctx, documents)
}

// ReplaceSource removes every chunk under source and ingests the
// documents in its place.
func (c *Corpus) ReplaceSource(ctx context.Context, source string, documents []ingestion.Document) (*ingestion.Result, error) {
	return c.pipeline.ReplaceSource(ctx, source, documents)
}

// DeleteSource removes every chunk under source and returns how many
// were removed. Deleting an absent source is not an error.
func (c *Corpus) DeleteSource(ctx context.Context, source string) (int, error) {
	return c.pipeline.RemoveSource(ctx, source)
}

// Search runs a hybrid search over the corpus.
func (c *Corpus) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	return c.engine.Search(ctx, req)
}

// ProviderStatus reports the configured embedding providers in fallback
// order.
func (c *Corpus) ProviderStatus() []ai.ProviderInfo {
	return c.orchestrator.ProviderStatus()
}

// CorpusStatus aggregates store statistics, provider state, and key
// rotation state into one report.
type CorpusStatus struct {
	Store     *storage.Stats
	Providers []ai.ProviderInfo
	Rotation  *rotation.Report
}

// Status returns a snapshot of the corpus.
func (c *Corpus) Status(ctx context.Context) (*CorpusStatus, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	status := &CorpusStatus{
		Store:     stats,
		Providers: c.orchestrator.ProviderStatus(),
	}
	if c.rotation != nil {
		report := c.rotation.Status()
		status.Rotation = &report
	}
	return status, nil
}

// Reembed regenerates embeddings for chunks recorded under the hash
// fallback, writing progress to the given writer.
func (c *Corpus) Reembed(ctx context.Context, progress io.Writer) error {
	return reembed.NewReembedder(c.store, c.orchestrator, nil, progress).Run(ctx)
}

// Close releases the pipeline pool and closes the storage layers.
func (c *Corpus) Close() error {
	c.pipeline.Release()

	if err := c.store.Close(); err != nil {
		c.logger.Error("error closing store", "err", err)
		return err
	}
	if err := c.backend.Close(); err != nil {
		c.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

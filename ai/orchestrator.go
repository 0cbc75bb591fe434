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


package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultBatchCeiling is the largest sub-batch handed to a provider in one
// call. Batches above this size are split before embedding.
const DefaultBatchCeiling = 100

// hashFallbackName matches the hash provider's name. Hash vectors carry no
// semantic signal, so results served under it are always reported degraded,
// even when the hash provider is the preferred pick for the corpus.
const hashFallbackName = "hash"

// BatchResult is the outcome of an EmbedBatch call.
type BatchResult struct {
	// Vectors holds one embedding per input text, in input order.
	Vectors [][]float32

	// Provider is the name of the provider that served the last sub-batch.
	Provider string

	// Dimension is that provider's vector width.
	Dimension int

	// Degraded reports that at least one sub-batch was not served by the
	// first-ranked provider, or was served by the hash fallback.
	Degraded bool
}

// QueryResult is the outcome of EmbedQuery or EmbedQueryVariants.
type QueryResult struct {
	// Vectors holds one embedding per query variant. EmbedQuery always
	// returns exactly one.
	Vectors [][]float32

	// Texts holds the embedded variant texts, aligned with Vectors.
	Texts []string

	// Provider is the name of the provider that embedded the query.
	Provider string

	// Dimension is that provider's vector width.
	Dimension int

	// Degraded reports that the preferred provider failed and a lower-ranked
	// one served the query instead, or that the hash fallback served it.
	// Hash-served queries are degraded even when the hash provider is the
	// dimension-matched pick for an all-hash corpus.
	Degraded bool
}

// ProviderInfo describes one configured provider for status reporting.
type ProviderInfo struct {
	Name      string
	Dimension int
	Active    bool
}

// Orchestrator walks an ordered slice of embedding providers. Earlier
// entries are preferred; the last entry is expected to be a provider that
// cannot fail, such as the hash fallback.
//
// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	providers    []EmbeddingProvider
	dims         DimensionSource
	expander     *QueryExpander
	batchCeiling int
	logger       *slog.Logger

	mu         sync.Mutex
	activeName string
	activeDim  int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator) error

// WithDimensionSource makes query-path provider selection consult the
// stored corpus's predominant dimension.
func WithDimensionSource(src DimensionSource) OrchestratorOption {
	return func(o *Orchestrator) error {
		o.dims = src
		return nil
	}
}

// WithSynonyms replaces the default query-expansion synonym table.
func WithSynonyms(table map[string][]string) OrchestratorOption {
	return func(o *Orchestrator) error {
		o.expander = NewQueryExpander(table)
		return nil
	}
}

// WithBatchCeiling overrides the sub-batch size limit.
func WithBatchCeiling(n int) OrchestratorOption {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("batch ceiling must be positive, got %d", n)
		}
		o.batchCeiling = n
		return nil
	}
}

// WithLogger sets the logger used by the orchestrator.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) error {
		o.logger = logger.With("component", "orchestrator")
		return nil
	}
}

// NewOrchestrator creates an orchestrator over providers in preference
// order. At least one provider is required.
func NewOrchestrator(providers []EmbeddingProvider, opts ...OrchestratorOption) (*Orchestrator, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	o := &Orchestrator{
		providers:    providers,
		expander:     NewQueryExpander(nil),
		batchCeiling: DefaultBatchCeiling,
		logger:       slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// EmbedBatch embeds texts for the write path. The input is split into
// sub-batches of at most the batch ceiling; each sub-batch walks the
// provider order until one serves it. The provider that served the last
// sub-batch becomes the "active" provider consulted by the query path.
//
// Returns ErrAllProvidersExhausted only if every provider fails for some
// sub-batch.
func (o *Orchestrator) EmbedBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	if len(texts) == 0 {
		return &BatchResult{Vectors: [][]float32{}}, nil
	}

	result := &BatchResult{Vectors: make([][]float32, 0, len(texts))}
	for start := 0; start < len(texts); start += o.batchCeiling {
		end := min(start+o.batchCeiling, len(texts))
		sub := texts[start:end]

		vectors, provider, err := o.embedWithFallback(ctx, sub, nil)
		if err != nil {
			return nil, err
		}
		if provider != o.providers[0] || provider.Name() == hashFallbackName {
			result.Degraded = true
		}

		result.Vectors = append(result.Vectors, vectors...)
		result.Provider = provider.Name()
		result.Dimension = provider.Dimension()
	}

	o.mu.Lock()
	o.activeName = result.Provider
	o.activeDim = result.Dimension
	o.mu.Unlock()

	o.logger.Debug("embedded batch",
		"texts", len(texts),
		"provider", result.Provider,
		"dimension", result.Dimension,
		"degraded", result.Degraded)
	return result, nil
}

// EmbedQuery embeds a single query text with the provider chosen for
// dimension consistency against the stored corpus.
func (o *Orchestrator) EmbedQuery(ctx context.Context, text string) (*QueryResult, error) {
	return o.embedQueryTexts(ctx, []string{text})
}

// ExpandQuery returns the query plus up to MaxQueryVariants-1 synonym
// variants. Variant merging happens downstream in the retrieval engine.
func (o *Orchestrator) ExpandQuery(query string) []string {
	return o.expander.Expand(query)
}

// EmbedQueryVariants expands the query and embeds every variant with a
// single provider, so all variant vectors share one dimension.
func (o *Orchestrator) EmbedQueryVariants(ctx context.Context, query string) (*QueryResult, error) {
	variants := o.expander.Expand(query)
	if len(variants) == 0 {
		return &QueryResult{Vectors: [][]float32{}}, nil
	}
	return o.embedQueryTexts(ctx, variants)
}

func (o *Orchestrator) embedQueryTexts(ctx context.Context, texts []string) (*QueryResult, error) {
	preferred := o.queryProvider()

	vectors, provider, err := o.embedWithFallback(ctx, texts, preferred)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{
		Vectors:   vectors,
		Texts:     texts,
		Provider:  provider.Name(),
		Dimension: provider.Dimension(),
		Degraded:  provider != preferred || provider.Name() == hashFallbackName,
	}
	o.logger.Debug("embedded query",
		"variants", len(texts),
		"provider", result.Provider,
		"dimension", result.Dimension,
		"degraded", result.Degraded)
	return result, nil
}

// queryProvider picks the provider for the query path. Dimension match with
// the stored corpus wins, then the active write-path provider, then the
// first-ranked provider. Querying at the wrong dimension silently matches
// nothing, so dimension consistency outranks preference order.
func (o *Orchestrator) queryProvider() EmbeddingProvider {
	if o.dims != nil {
		if d := o.dims.PredominantDimension(); d > 0 {
			for _, p := range o.providers {
				if p.Dimension() == d {
					return p
				}
			}
			o.logger.Warn("no provider matches stored dimension", "dimension", d)
		}
	}

	o.mu.Lock()
	name := o.activeName
	o.mu.Unlock()
	if name != "" {
		for _, p := range o.providers {
			if p.Name() == name {
				return p
			}
		}
	}
	return o.providers[0]
}

// embedWithFallback tries preferred first (when non-nil), then the
// remaining providers in rank order.
func (o *Orchestrator) embedWithFallback(ctx context.Context, texts []string, preferred EmbeddingProvider) ([][]float32, EmbeddingProvider, error) {
	order := make([]EmbeddingProvider, 0, len(o.providers))
	if preferred != nil {
		order = append(order, preferred)
	}
	for _, p := range o.providers {
		if p != preferred {
			order = append(order, p)
		}
	}

	var lastErr error
	for _, p := range order {
		vectors, err := p.EmbedTexts(ctx, texts)
		if err != nil {
			o.logger.Warn("provider failed, falling through",
				"provider", p.Name(), "err", err)
			lastErr = err
			continue
		}
		if len(vectors) != len(texts) {
			lastErr = fmt.Errorf("provider %s returned %d vectors for %d texts",
				p.Name(), len(vectors), len(texts))
			continue
		}
		return vectors, p, nil
	}
	return nil, nil, fmt.Errorf("%w: %w", ErrAllProvidersExhausted, lastErr)
}

// ProviderStatus reports the configured providers in rank order, flagging
// the one currently active on the write path.
func (o *Orchestrator) ProviderStatus() []ProviderInfo {
	o.mu.Lock()
	active := o.activeName
	o.mu.Unlock()

	infos := make([]ProviderInfo, len(o.providers))
	for i, p := range o.providers {
		infos[i] = ProviderInfo{
			Name:      p.Name(),
			Dimension: p.Dimension(),
			Active:    p.Name() == active,
		}
	}
	return infos
}

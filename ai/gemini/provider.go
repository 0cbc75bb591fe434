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


// Package gemini provides a rotation-backed embedding provider for the
// Gemini API. Every request acquires a credential from the rotation
// manager; request outcomes are reported back so quota exhaustion rotates
// to the next key instead of failing the caller.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/rotation"
)

// DefaultModel is the embedding model used unless overridden.
const DefaultModel = "gemini-embedding-001"

// DefaultDimension is the requested output dimensionality.
const DefaultDimension = 768

// ProviderName identifies Gemini embeddings in chunk metadata.
const ProviderName = "gemini"

// Provider implements ai.EmbeddingProvider against the Gemini API with
// credential rotation. One genai client is built lazily per credential and
// cached for the provider's lifetime.
type Provider struct {
	rot    *rotation.Manager
	model  string
	dim    int32
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// Option configures a Provider.
type Option func(*Provider) error

// WithModel overrides the embedding model identifier.
func WithModel(model string) Option {
	return func(p *Provider) error {
		if model == "" {
			return errors.New("model must not be empty")
		}
		p.model = model
		return nil
	}
}

// WithDimension overrides the requested output dimensionality.
func WithDimension(dim int) Option {
	return func(p *Provider) error {
		if dim < 1 {
			return fmt.Errorf("dimension must be positive, got %d", dim)
		}
		p.dim = int32(dim)
		return nil
	}
}

// WithLogger sets the logger used by the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) error {
		p.logger = logger.With("component", "gemini-provider")
		return nil
	}
}

// NewProvider creates a Gemini provider over the given rotation manager.
func NewProvider(rot *rotation.Manager, opts ...Option) (*Provider, error) {
	if rot == nil {
		return nil, errors.New("rotation manager is required")
	}

	p := &Provider{
		rot:     rot,
		model:   DefaultModel,
		dim:     DefaultDimension,
		logger:  slog.Default().With("component", "gemini-provider"),
		clients: make(map[string]*genai.Client),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Dimension returns the requested output dimensionality.
func (p *Provider) Dimension() int { return int(p.dim) }

// EmbedText generates a vector embedding for a single text string.
func (p *Provider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in one
// API call. Failures are classified and reported to the rotation manager;
// the call retries under the next credential until the ring is exhausted,
// at which point it fails with ai.ErrProviderUnavailable.
func (p *Provider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	dim := p.dim
	config := &genai.EmbedContentConfig{OutputDimensionality: &dim}

	// Transient failures do not advance the ring, so allow a couple of
	// passes over it before giving up.
	var lastErr error
	for attempt := 0; attempt < 2*p.rot.Len(); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		handle, err := p.rot.Acquire()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ai.ErrProviderUnavailable, errors.Join(err, lastErr))
		}

		client, err := p.client(ctx, handle.Key)
		if err != nil {
			p.rot.ReportFailure(handle, classifyError(err))
			lastErr = err
			continue
		}

		result, err := client.Models.EmbedContent(ctx, p.model, contents, config)
		if err != nil {
			kind := classifyError(err)
			p.logger.Warn("embed request failed",
				"texts", len(texts), "kind", kind, "err", err)
			p.rot.ReportFailure(handle, kind)
			lastErr = err
			continue
		}

		if len(result.Embeddings) != len(texts) {
			p.rot.ReportFailure(handle, rotation.FailureTransient)
			lastErr = fmt.Errorf("got %d embeddings for %d texts", len(result.Embeddings), len(texts))
			continue
		}

		p.rot.ReportSuccess(handle)
		vectors := make([][]float32, len(texts))
		for i, emb := range result.Embeddings {
			vectors[i] = emb.Values
		}
		return vectors, nil
	}
	return nil, fmt.Errorf("%w: %w", ai.ErrProviderUnavailable, lastErr)
}

// client returns the cached genai client for a credential, building it on
// first use.
func (p *Provider) client(ctx context.Context, key string) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	p.clients[key] = c
	return c, nil
}

// classifyError maps an API error to the rotation failure kinds. Quota
// ceilings rotate the credential, auth failures retire it, everything else
// counts as transient.
func classifyError(err error) rotation.FailureKind {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return rotation.FailureQuotaExhausted
		case http.StatusUnauthorized, http.StatusForbidden:
			return rotation.FailureInvalid
		}
	}
	return rotation.FailureTransient
}

var _ ai.EmbeddingProvider = (*Provider)(nil)

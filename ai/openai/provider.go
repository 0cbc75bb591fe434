package openai

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/retrievit/ai"
)

// Provider implements ai.EmbeddingProvider using OpenAI-compatible
// embedding APIs.
type Provider struct {
	name     string
	dim      int
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewProvider creates an embedding provider from the given configuration.
// The config is validated and normalized before use.
func NewProvider(config *ai.Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Provider{
		name:     config.ProviderName,
		dim:      config.Dimensions,
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-provider", "provider", config.ProviderName),
	}, nil
}

// Name returns the configured provider identifier.
func (p *Provider) Name() string { return p.name }

// Dimension returns the configured vector width.
func (p *Provider) Dimension() int { return p.dim }

// EmbedText generates a vector embedding for a single text string.
func (p *Provider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	p.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := p.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		p.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}

	if len(vectors) == 0 {
		p.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}

	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (p *Provider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	p.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		p.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	return vectors, nil
}

var _ ai.EmbeddingProvider = (*Provider)(nil)

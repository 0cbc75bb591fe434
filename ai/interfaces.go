package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingProvider is an Embedder with a stable identity. The orchestrator
// selects among providers by name and by dimension, so both must be constant
// for the lifetime of the provider.
type EmbeddingProvider interface {
	Embedder

	// Name returns the provider's stable identifier, recorded in chunk
	// metadata at ingestion time.
	Name() string

	// Dimension returns the width of every vector this provider produces.
	Dimension() int
}

// RelevanceScorer scores how well a text answers a query, on a 0 to 1 scale.
// Used by the cross-encoder re-ranking stage.
// Implementations must be thread-safe for concurrent use.
type RelevanceScorer interface {
	ScorePair(ctx context.Context, query, text string) (float32, error)
}

// DimensionSource reports the predominant vector dimension of the stored
// corpus. The orchestrator consults it before embedding a query so the query
// vector is comparable to the majority of stored chunks.
type DimensionSource interface {
	// PredominantDimension returns the most common stored dimension,
	// or 0 when the corpus is empty.
	PredominantDimension() int
}

// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.EmbeddingProvider and
// ai.RelevanceScorer for use in unit tests. The mocks allow tests to run
// without external AI service dependencies and enable controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	// Deterministic embeddings at a chosen dimension
//	provider := mock.NewMockProvider("fast", 384)
//
//	// Inject a failure
//	provider.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
package mock

package mock

import (
	"context"
	"hash/fnv"
	"sync"
)

// MockProvider is a test double for ai.EmbeddingProvider.
// It allows custom behavior injection via function fields.
type MockProvider struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	name string
	dim  int

	mu         sync.Mutex
	callCount  int
	batchSizes []int
}

// NewMockProvider creates a mock provider with default deterministic behavior.
// Note: Returns concrete type to allow test assertions on call counts.
func NewMockProvider(name string, dim int) *MockProvider {
	return &MockProvider{name: name, dim: dim}
}

// Name returns the configured provider identifier.
func (m *MockProvider) Name() string { return m.name }

// Dimension returns the configured vector width.
func (m *MockProvider) Dimension() int { return m.dim }

// EmbedText generates a deterministic embedding based on text hash.
func (m *MockProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.record(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}

	return DeterministicVector(text, m.dim), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.record(len(texts))

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = DeterministicVector(text, m.dim)
	}
	return vectors, nil
}

func (m *MockProvider) record(batchSize int) {
	m.mu.Lock()
	m.callCount++
	m.batchSizes = append(m.batchSizes, batchSize)
	m.mu.Unlock()
}

// CallCount returns the number of times any embed method was called.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// BatchSizes returns the input size of every embed call, in call order.
func (m *MockProvider) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batchSizes...)
}

// Reset clears recorded calls and injected behavior.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	m.callCount = 0
	m.batchSizes = nil
	m.mu.Unlock()
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// DeterministicVector creates a deterministic embedding vector from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		// Simple pseudo-random generation based on seed and index
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}

	// Normalize to unit vector
	var sumSquares float32
	for _, v := range vector {
		sumSquares += v * v
	}
	norm := float32(1.0)
	if sumSquares > 0 {
		norm = float32(1.0) / float32(sumSquares)
		for i := range vector {
			vector[i] *= norm
		}
	}

	return vector
}

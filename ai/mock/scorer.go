package mock

import (
	"context"
	"sync"
)

// MockScorer is a test double for ai.RelevanceScorer.
type MockScorer struct {
	// ScorePairFunc is called by ScorePair if set.
	// If nil, every pair scores 0.5.
	ScorePairFunc func(ctx context.Context, query, text string) (float32, error)

	mu        sync.Mutex
	callCount int
}

// NewMockScorer creates a mock scorer with default neutral behavior.
func NewMockScorer() *MockScorer {
	return &MockScorer{}
}

// ScorePair scores a query/text pair.
func (m *MockScorer) ScorePair(ctx context.Context, query, text string) (float32, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ScorePairFunc != nil {
		return m.ScorePairFunc(ctx, query, text)
	}
	return 0.5, nil
}

// CallCount returns the number of times ScorePair was called.
func (m *MockScorer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockScorer) Reset() {
	m.mu.Lock()
	m.callCount = 0
	m.mu.Unlock()
	m.ScorePairFunc = nil
}

package embedding

import (
	"context"
	"sync"
)

// MockProvider is a configurable Provider for tests. It is safe for
// concurrent use.
type MockProvider struct {
	// CreateEmbeddingsFunc handles calls. If nil, each input gets a fixed
	// two-dimensional vector.
	CreateEmbeddingsFunc func(ctx context.Context, inputs []string) ([][]float32, error)

	// ModelName is returned by Model. Defaults to "mock-embedding".
	ModelName string

	mu     sync.Mutex
	calls  int
	inputs [][]string
}

var _ Provider = (*MockProvider)(nil)

// CreateEmbeddings implements Provider.
func (m *MockProvider) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.inputs = append(m.inputs, append([]string(nil), inputs...))
	fn := m.CreateEmbeddingsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, inputs)
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// Model implements Provider.
func (m *MockProvider) Model() string {
	if m.ModelName == "" {
		return "mock-embedding"
	}
	return m.ModelName
}

// Calls returns how many times CreateEmbeddings was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Inputs returns the inputs of every call so far.
func (m *MockProvider) Inputs() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.inputs...)
}

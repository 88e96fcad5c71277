package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/quizforge/internal/generation"
)

// MockStageClient implements generation.StageClient for testing
type MockStageClient struct {
	// GenerateFn allows test cases to mock the Generate behavior
	GenerateFn func(ctx context.Context, systemContext, userContext string) (string, error)

	// Default response values
	Output string
	Err    error

	mu           sync.Mutex
	calls        int
	userContexts []string
}

var _ generation.StageClient = (*MockStageClient)(nil)

// Generate implements generation.StageClient
func (m *MockStageClient) Generate(ctx context.Context, systemContext, userContext string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.userContexts = append(m.userContexts, userContext)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, systemContext, userContext)
	}
	return m.Output, m.Err
}

// Calls returns how many times Generate was called
func (m *MockStageClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// UserContexts returns every user prompt passed to Generate, in call order
func (m *MockStageClient) UserContexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.userContexts))
	copy(out, m.userContexts)
	return out
}

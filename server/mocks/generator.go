package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/chatrelay/server/generation"
)

// MockGenerator implements processing.Generator without a network round trip.
// Each call is resolved into a generation.Request first, so tests can assert
// on the exact parameters that would have been sent.
//
// Example usage:
//
//	gen := NewMockGenerator(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
//	    return &generation.Result{GeneratedText: "mocked response"}, nil
//	})
type MockGenerator struct {
	GenerateFunc func(context.Context, generation.Request) (*generation.Result, error)

	mu    sync.Mutex
	calls []generation.Request
}

// NewMockGenerator creates a MockGenerator. If generateFunc is nil, Generate
// returns an empty result with no error.
func NewMockGenerator(generateFunc func(context.Context, generation.Request) (*generation.Result, error)) *MockGenerator {
	return &MockGenerator{GenerateFunc: generateFunc}
}

// Generate records the resolved request and delegates to GenerateFunc.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts ...generation.GenerateOption) (*generation.Result, error) {
	req := generation.NewRequest(prompt, opts...)

	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &generation.Result{}, nil
}

// Calls returns the requests seen so far.
func (m *MockGenerator) Calls() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]generation.Request, len(m.calls))
	copy(out, m.calls)
	return out
}

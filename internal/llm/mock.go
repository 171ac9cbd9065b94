package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient implements Client for tests. Responses are served in order; a
// response function may inspect the request. No real API calls are made.
type MockClient struct {
	mu        sync.Mutex
	responses []func(req CompletionRequest) (string, error)
	calls     []CompletionRequest
}

// NewMockClient builds a client that replies with the given texts in order.
func NewMockClient(replies ...string) *MockClient {
	m := &MockClient{}
	for _, reply := range replies {
		reply := reply
		m.responses = append(m.responses, func(CompletionRequest) (string, error) {
			return reply, nil
		})
	}
	return m
}

// Respond appends a scripted response function.
func (m *MockClient) Respond(fn func(req CompletionRequest) (string, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, fn)
	return m
}

// Calls returns the requests seen so far.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockClient) Model() string { return "mock" }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, req)
	if idx >= len(m.responses) {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock client: unexpected call %d", idx+1)
	}
	fn := m.responses[idx]
	m.mu.Unlock()

	content, err := fn(req)
	if err != nil {
		return nil, err
	}
	return &CompletionResponse{
		Content:    content,
		StopReason: "stop",
		Usage:      TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

package llm

import (
	"context"
	"sync"
)

// MockClient returns canned responses in order, repeating the last one.
// The "mock" provider uses it for offline runs.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	requests  []CompletionRequest
}

// NewMockClient builds a mock that answers with responses in sequence.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses}
}

// NewFailingMockClient builds a mock whose every call fails with err.
func NewFailingMockClient(err error) *MockClient {
	return &MockClient{err: err}
}

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	content := "{}"
	if n := len(m.responses); n > 0 {
		idx := m.calls - 1
		if idx >= n {
			idx = n - 1
		}
		content = m.responses[idx]
	}
	return &CompletionResponse{Content: content, StopReason: "stop"}, nil
}

func (m *MockClient) Model() string { return "mock" }

// Calls reports how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of the received requests.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}

package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for the LLM Client interface. With neither
// Response nor Fn set it answers with empty content, which makes topic
// extraction fall back to the default topic; the "mock" provider relies on
// that for offline runs.
type MockClient struct {
	Response *Response
	Err      error
	Fn       func(prompt string) (*Response, error)

	mu    sync.Mutex
	calls []string
}

// Complete records the call and returns the mock response.
func (m *MockClient) Complete(ctx context.Context, prompt string) (*Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, prompt)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Fn != nil {
		return m.Fn(prompt)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Response == nil {
		return &Response{Provider: "mock"}, nil
	}
	return m.Response, nil
}

// Calls returns the prompts received so far.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

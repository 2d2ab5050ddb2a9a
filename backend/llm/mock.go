package llm

import (
	"context"
	"encoding/json"
	"sync"
)

type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// TextResponse is shorthand for a canned plain-text answer.
func TextResponse(text string) MockResponse {
	return MockResponse{Content: json.RawMessage(text)}
}

// MockProvider returns canned responses in FIFO order and records every request.
// Responses queued with AddResponseFor are served first to calls made with that
// purpose. An empty queue yields ErrProviderUnavailable.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	byPurpose map[string][]MockResponse
	Calls     []Request
}

func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	var resp MockResponse
	purpose := PurposeFrom(ctx)
	switch {
	case len(m.byPurpose[purpose]) > 0:
		resp = m.byPurpose[purpose][0]
		m.byPurpose[purpose] = m.byPurpose[purpose][1:]
	case len(m.responses) > 0:
		resp = m.responses[0]
		m.responses = m.responses[1:]
	default:
		return nil, &ErrProviderUnavailable{}
	}

	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

func (m *MockProvider) ModelID() string {
	return "mock"
}

func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

func (m *MockProvider) AddResponseFor(purpose string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byPurpose == nil {
		m.byPurpose = make(map[string][]MockResponse)
	}
	m.byPurpose[purpose] = append(m.byPurpose[purpose], resp)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or false if none was made.
func (m *MockProvider) LastCall() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Request{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}

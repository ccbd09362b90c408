package model

import (
	"context"
	"strings"
	"sync"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Calls are served from a FIFO script first, then from substring-matched
// canned responses, then from a generic echo. Every request is recorded for
// assertions.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	script    []scripted
	responses map[string]string
	requests  []Request
}

type scripted struct {
	text string
	err  error
}

// NewMockModel constructs a MockModel identifying as name/provider.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion served when the request's last
// user message contains substr.
func (m *MockModel) AddResponse(substr, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[substr] = response
}

// Enqueue schedules a response served before any canned matching.
func (m *MockModel) Enqueue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range responses {
		m.script = append(m.script, scripted{text: r})
	}
}

// FailWith schedules an error for the next call.
func (m *MockModel) FailWith(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, err := range errs {
		m.script = append(m.script, scripted{err: err})
	}
}

// Requests returns a copy of all requests seen so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// CallCount returns the number of Complete invocations.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Complete implements Model.
func (m *MockModel) Complete(ctx context.Context, req Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		if next.err != nil {
			return nil, next.err
		}
		return &Response{Text: next.text}, nil
	}

	input := lastUserContent(req)
	for substr, response := range m.responses {
		if strings.Contains(input, substr) {
			return &Response{Text: response}, nil
		}
	}
	return &Response{Text: "Mock response to: " + input}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func lastUserContent(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	if len(req.Messages) > 0 {
		return req.Messages[len(req.Messages)-1].Content
	}
	return req.Instructions
}

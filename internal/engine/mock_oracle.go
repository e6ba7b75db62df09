package engine

import (
	"context"
	"encoding/json"

	"github.com/ledgerleaf/payeewise/internal/llm"
)

// MockOracle is a scripted oracle client for testing. Object responses are
// consumed in order; when the script runs out the last response repeats.
type MockOracle struct {
	Err             error
	TextResponse    string
	ObjectResponses []json.RawMessage
	Requests        []llm.Request
	Caps            llm.Capabilities
	TextCalls       int
	ObjectCalls     int
}

// NewMockOracle creates a mock with full capabilities.
func NewMockOracle(responses ...json.RawMessage) *MockOracle {
	return &MockOracle{
		ObjectResponses: responses,
		Caps:            llm.Capabilities{WebSearch: true, StructuredOutput: true},
	}
}

// GenerateText returns the scripted text response.
func (m *MockOracle) GenerateText(_ context.Context, req llm.Request) (string, error) {
	m.TextCalls++
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.TextResponse, nil
}

// GenerateObject returns the next scripted object response.
func (m *MockOracle) GenerateObject(_ context.Context, req llm.Request) (json.RawMessage, error) {
	m.ObjectCalls++
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.ObjectResponses) == 0 {
		return nil, nil
	}
	idx := m.ObjectCalls - 1
	if idx >= len(m.ObjectResponses) {
		idx = len(m.ObjectResponses) - 1
	}
	return m.ObjectResponses[idx], nil
}

// Capabilities reports the mock's configured capabilities.
func (m *MockOracle) Capabilities() llm.Capabilities {
	return m.Caps
}

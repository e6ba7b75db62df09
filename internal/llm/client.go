// Package llm provides the oracle client used for payee identification,
// category suggestion, and cluster refinement.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Request is a single oracle call. Schema, when set, is a JSON-Schema-like
// object the response must conform to; WebSearch permits the provider to
// consult external sources if it can.
type Request struct {
	System    string
	Input     string
	Schema    map[string]any
	WebSearch bool
}

// Capabilities describes what a provider can negotiate.
type Capabilities struct {
	WebSearch        bool
	StructuredOutput bool
}

// Client defines the interface for oracle providers. Implementations must
// surface a typed failure rather than returning malformed or empty content.
type Client interface {
	GenerateText(ctx context.Context, req Request) (string, error)
	GenerateObject(ctx context.Context, req Request) (json.RawMessage, error)
	Capabilities() Capabilities
}

// Config holds configuration for the oracle client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// OracleError is the typed failure surfaced by providers.
type OracleError struct {
	Err        error
	Provider   string
	Message    string
	StatusCode int
}

func (e *OracleError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s oracle error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s oracle error: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s oracle error: %s", e.Provider, e.Message)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

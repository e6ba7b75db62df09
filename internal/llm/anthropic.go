package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// anthropicClient implements the Client interface for the Anthropic API.
type anthropicClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// newAnthropicClient creates a new Anthropic API client.
func newAnthropicClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	return &anthropicClient{
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Capabilities reports what this provider supports. Anthropic offers a web
// search tool; structured output is enforced by instruction, not schema.
func (c *anthropicClient) Capabilities() Capabilities {
	return Capabilities{WebSearch: true, StructuredOutput: false}
}

// GenerateText sends a free-text request to Anthropic.
func (c *anthropicClient) GenerateText(ctx context.Context, req Request) (string, error) {
	content, err := c.complete(ctx, req, req.System)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// GenerateObject sends a structured request to Anthropic. The schema is
// embedded in the instructions and the response is validated as JSON before
// being returned.
func (c *anthropicClient) GenerateObject(ctx context.Context, req Request) (json.RawMessage, error) {
	system := req.System
	if system != "" {
		system += "\n\n"
	}

	schemaJSON, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	system += fmt.Sprintf(`You MUST respond with ONLY a valid JSON value conforming to this JSON Schema. No explanatory text, no markdown fences.

Schema:
%s`, string(schemaJSON))

	content, err := c.complete(ctx, req, system)
	if err != nil {
		return nil, err
	}

	extracted, err := extractJSONObject(content)
	if err != nil {
		return nil, &OracleError{Provider: "anthropic", Message: "response is not valid JSON", Err: err}
	}

	if !json.Valid([]byte(extracted)) {
		return nil, &OracleError{Provider: "anthropic", Message: "response failed JSON validation"}
	}

	return json.RawMessage(extracted), nil
}

// complete performs one messages-API round trip and concatenates the
// response's text blocks.
func (c *anthropicClient) complete(ctx context.Context, req Request, system string) (string, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": req.Input,
			},
		},
	}
	if system != "" {
		requestBody["system"] = system
	}
	if req.WebSearch {
		requestBody["tools"] = []map[string]any{
			{
				"type":     "web_search_20250305",
				"name":     "web_search",
				"max_uses": 3,
			},
		}
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &OracleError{Provider: "anthropic", Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &OracleError{Provider: "anthropic", Message: "failed to read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &OracleError{Provider: "anthropic", StatusCode: resp.StatusCode, Message: string(body)}
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &OracleError{Provider: "anthropic", Message: "failed to parse response", Err: err}
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", &OracleError{Provider: "anthropic", Message: "no content in response"}
	}

	return text.String(), nil
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

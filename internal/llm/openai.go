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

// openAIClient implements the Client interface for the OpenAI API.
type openAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// newOpenAIClient creates a new OpenAI API client.
func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	return &openAIClient{
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

// Capabilities reports what this provider supports. OpenAI enforces schemas
// natively via response_format; web search is not available here.
func (c *openAIClient) Capabilities() Capabilities {
	return Capabilities{WebSearch: false, StructuredOutput: true}
}

// GenerateText sends a free-text request to OpenAI.
func (c *openAIClient) GenerateText(ctx context.Context, req Request) (string, error) {
	content, err := c.complete(ctx, req, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// GenerateObject sends a structured request to OpenAI using the native
// json_schema response format.
func (c *openAIClient) GenerateObject(ctx context.Context, req Request) (json.RawMessage, error) {
	responseFormat := map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "response",
			"strict": true,
			"schema": req.Schema,
		},
	}

	content, err := c.complete(ctx, req, responseFormat)
	if err != nil {
		return nil, err
	}

	extracted, err := extractJSONObject(content)
	if err != nil {
		return nil, &OracleError{Provider: "openai", Message: "response is not valid JSON", Err: err}
	}

	if !json.Valid([]byte(extracted)) {
		return nil, &OracleError{Provider: "openai", Message: "response failed JSON validation"}
	}

	return json.RawMessage(extracted), nil
}

// complete performs one chat-completions round trip.
func (c *openAIClient) complete(ctx context.Context, req Request, responseFormat map[string]any) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": req.System,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": req.Input,
	})

	requestBody := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}
	if responseFormat != nil {
		requestBody["response_format"] = responseFormat
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/chat/completions", strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &OracleError{Provider: "openai", Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &OracleError{Provider: "openai", Message: "failed to read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &OracleError{Provider: "openai", StatusCode: resp.StatusCode, Message: string(body)}
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &OracleError{Provider: "openai", Message: "failed to parse response", Err: err}
	}

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "", &OracleError{Provider: "openai", Message: "no content in response"}
	}

	return response.Choices[0].Message.Content, nil
}

// openAIResponse represents the OpenAI API response structure.
type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey    string
	Model     string        // default: claude-sonnet-4-20250514
	BaseURL   string        // default: https://api.anthropic.com
	MaxTokens int           // default: 2048
	Timeout   time.Duration // default: 60s
	Breaker   *CircuitBreaker
}

// AnthropicClient implements ChatCompleter using the Anthropic Messages API.
type AnthropicClient struct {
	cfg            AnthropicConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewAnthropicClient creates a new Anthropic client with the given configuration.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cb := cfg.Breaker
	if cb == nil {
		cb = NewCircuitBreaker("anthropic")
	}
	return &AnthropicClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: cb,
	}
}

// anthropicMessagesRequest is the request body for POST /v1/messages.
type anthropicMessagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// anthropicMessagesResponse is the response body from POST /v1/messages.
type anthropicMessagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat sends the conversation to Anthropic with the briefing as the system prompt.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return execute(ctx, c.circuitBreaker, func() (*ChatResponse, error) {
		return c.chat(ctx, req)
	})
}

func (c *AnthropicClient) chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := anthropicMessagesRequest{
		Model:     orDefault(req.Model, c.cfg.Model),
		MaxTokens: orDefaultInt(req.MaxTokens, c.cfg.MaxTokens),
		System:    req.SystemPrompt,
		Messages:  req.Messages,
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	}

	var respData anthropicMessagesResponse
	if err := postJSON(ctx, c.client, "anthropic", c.cfg.BaseURL+"/v1/messages", headers, body, &respData); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range respData.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("anthropic returned empty content")
	}

	return &ChatResponse{
		Content: text.String(),
		Model:   respData.Model,
		Usage: Usage{
			InputTokens:  respData.Usage.InputTokens,
			OutputTokens: respData.Usage.OutputTokens,
		},
	}, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.cfg.Model
}

// Compile-time assertion.
var _ ChatCompleter = (*AnthropicClient)(nil)

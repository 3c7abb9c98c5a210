package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ProxyConfig holds configuration for the chat proxy client.
type ProxyConfig struct {
	BaseURL   string        // default: http://localhost:3001
	Model     string        // default: claude-sonnet-4-20250514
	MaxTokens int           // default: 2048
	Timeout   time.Duration // default: 60s
	Breaker   *CircuitBreaker
}

// ProxyClient implements ChatCompleter through the backend chat proxy,
// which holds the upstream API key.
type ProxyClient struct {
	cfg            ProxyConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewProxyClient creates a new proxy client with the given configuration.
func NewProxyClient(cfg ProxyConfig) *ProxyClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:3001"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cb := cfg.Breaker
	if cb == nil {
		cb = NewCircuitBreaker("proxy")
	}
	return &ProxyClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: cb,
	}
}

// proxyChatRequest is the request body for POST /api/chat.
type proxyChatRequest struct {
	Messages     []Message `json:"messages"`
	SystemPrompt string    `json:"systemPrompt"`
	Model        string    `json:"model"`
	MaxTokens    int       `json:"maxTokens"`
}

// proxyChatResponse is the response body from POST /api/chat.
type proxyChatResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat sends the conversation to the proxy.
func (c *ProxyClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return execute(ctx, c.circuitBreaker, func() (*ChatResponse, error) {
		return c.chat(ctx, req)
	})
}

func (c *ProxyClient) chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := proxyChatRequest{
		Messages:     req.Messages,
		SystemPrompt: req.SystemPrompt,
		Model:        orDefault(req.Model, c.cfg.Model),
		MaxTokens:    orDefaultInt(req.MaxTokens, c.cfg.MaxTokens),
	}

	var respData proxyChatResponse
	if err := postJSON(ctx, c.client, "proxy", c.cfg.BaseURL+"/api/chat", nil, body, &respData); err != nil {
		return nil, err
	}
	if len(respData.Content) == 0 {
		return nil, fmt.Errorf("proxy returned empty content")
	}

	return &ChatResponse{
		Content: respData.Content[0].Text,
		Model:   respData.Model,
		Usage: Usage{
			InputTokens:  respData.Usage.InputTokens,
			OutputTokens: respData.Usage.OutputTokens,
		},
	}, nil
}

// GetModel returns the configured model name.
func (c *ProxyClient) GetModel() string {
	return c.cfg.Model
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Compile-time assertion.
var _ ChatCompleter = (*ProxyClient)(nil)

package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey    string
	Model     string        // default: gpt-4o-mini
	BaseURL   string        // default: https://api.openai.com
	MaxTokens int           // default: 2048
	Timeout   time.Duration // default: 60s
	Breaker   *CircuitBreaker
}

// OpenAIClient implements ChatCompleter using the OpenAI chat completions API.
type OpenAIClient struct {
	cfg            OpenAIConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewOpenAIClient creates a new OpenAI client with the given configuration.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
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
		cb = NewCircuitBreaker("openai")
	}
	return &OpenAIClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: cb,
	}
}

// openAIChatRequest is the request body for POST /v1/chat/completions.
type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// openAIChatResponse is the response body from POST /v1/chat/completions.
type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends the conversation to OpenAI with the briefing as a leading
// system message.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return execute(ctx, c.circuitBreaker, func() (*ChatResponse, error) {
		return c.chat(ctx, req)
	})
}

func (c *OpenAIClient) chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	body := openAIChatRequest{
		Model:       orDefault(req.Model, c.cfg.Model),
		Messages:    messages,
		MaxTokens:   orDefaultInt(req.MaxTokens, c.cfg.MaxTokens),
		Temperature: 0,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}

	var respData openAIChatResponse
	if err := postJSON(ctx, c.client, "openai", c.cfg.BaseURL+"/v1/chat/completions", headers, body, &respData); err != nil {
		return nil, err
	}
	if len(respData.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &ChatResponse{
		Content: respData.Choices[0].Message.Content,
		Model:   respData.Model,
		Usage: Usage{
			InputTokens:  respData.Usage.PromptTokens,
			OutputTokens: respData.Usage.CompletionTokens,
		},
	}, nil
}

// GetModel returns the configured model name.
func (c *OpenAIClient) GetModel() string {
	return c.cfg.Model
}

// Compile-time assertion.
var _ ChatCompleter = (*OpenAIClient)(nil)

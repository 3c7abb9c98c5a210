package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig holds Ollama client configuration.
type OllamaConfig struct {
	// BaseURL is the base URL for the Ollama API (default: http://localhost:11434)
	BaseURL string

	// Model is the model name to use for chat (default: llama3.1:8b)
	Model string

	// MaxTokens caps the reply length through num_predict (default: 2048)
	MaxTokens int

	// Timeout is the request timeout duration (default: 60s).
	// Local models answer slowly on a cold start.
	Timeout time.Duration

	Breaker *CircuitBreaker
}

// OllamaClient implements ChatCompleter against a local Ollama server, for
// running the assistant without an upstream API key.
type OllamaClient struct {
	cfg            OllamaConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// ollamaChatRequest is the request body for POST /api/chat.
type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

// ollamaChatResponse is the non-streaming response from POST /api/chat.
type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// NewOllamaClient creates a new Ollama client with the given configuration.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "llama3.1:8b"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cb := cfg.Breaker
	if cb == nil {
		cb = NewCircuitBreaker("ollama")
	}
	return &OllamaClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: cb,
	}
}

// Chat sends the conversation to Ollama with the briefing as a leading
// system message.
func (c *OllamaClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return execute(ctx, c.circuitBreaker, func() (*ChatResponse, error) {
		return c.chat(ctx, req)
	})
}

func (c *OllamaClient) chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	body := ollamaChatRequest{
		Model:    orDefault(req.Model, c.cfg.Model),
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			NumPredict: orDefaultInt(req.MaxTokens, c.cfg.MaxTokens),
		},
	}

	var respData ollamaChatResponse
	if err := postJSON(ctx, c.client, "ollama", c.cfg.BaseURL+"/api/chat", nil, body, &respData); err != nil {
		return nil, err
	}
	if respData.Message.Content == "" {
		return nil, fmt.Errorf("ollama returned empty content")
	}

	return &ChatResponse{
		Content: respData.Message.Content,
		Model:   respData.Model,
		Usage: Usage{
			InputTokens:  respData.PromptEvalCount,
			OutputTokens: respData.EvalCount,
		},
	}, nil
}

// HealthCheck verifies that Ollama is reachable by checking the /api/version endpoint.
// It bypasses the circuit breaker since it is a health check itself.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("health check returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// GetModel returns the configured model name.
func (c *OllamaClient) GetModel() string {
	return c.cfg.Model
}

// Compile-time assertion.
var _ ChatCompleter = (*OllamaClient)(nil)

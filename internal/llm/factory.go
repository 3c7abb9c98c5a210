package llm

import (
	"fmt"
	"time"

	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/metrics"
)

// Defaults shared by every provider.
const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 2048
)

// NewChatCompleter creates the ChatCompleter selected by the assistant
// configuration. Breaker transitions are reported to m, which may be nil.
func NewChatCompleter(cfg config.AssistantConfig, m *metrics.Metrics) (ChatCompleter, error) {
	breaker := func(name string) *CircuitBreaker {
		return NewCircuitBreakerWithConfig(CircuitBreakerConfig{
			Name:                 name,
			MaxFailures:          3,
			Timeout:              30 * time.Second,
			HalfOpenMaxSuccesses: 2,
			OnStateChange: func(name, from, to string) {
				m.BreakerState(name, breakerGauge(to))
			},
		})
	}

	switch cfg.Provider {
	case "proxy", "":
		return NewProxyClient(ProxyConfig{
			BaseURL:   cfg.ProxyURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
			Breaker:   breaker("proxy"),
		}), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropicClient(AnthropicConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
			Breaker:   breaker("anthropic"),
		}), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
			Breaker:   breaker("openai"),
		}), nil
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
			Breaker:   breaker("ollama"),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported assistant provider: %q", cfg.Provider)
	}
}

func breakerGauge(state string) int {
	switch state {
	case "open":
		return metrics.BreakerOpen
	case "half-open":
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}

// Package config provides configuration management for the energy-services
// dashboard backend. It loads settings from environment variables with the
// ENERGY_ prefix and provides sensible defaults for all configuration options.
//
// The ordered key catalog (energy sources, sectors, period windows, region
// groupings) lives in catalog.go and may be overlaid from a YAML file.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration settings for the application.
type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Assistant AssistantConfig
	RateLimit RateLimitConfig
	Features  FeaturesConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port           int    // Server port (default: 8080)
	Host           string // Server host (default: 127.0.0.1)
	AllowedOrigins string // Comma-separated CORS origins for the dashboard frontend (default: http://localhost:5173)
}

// DataConfig contains dataset access configuration.
type DataConfig struct {
	Source       string        // Dataset source: dir, http (default: dir)
	DataPath     string        // Directory holding the JSON datasets (default: ./public/data)
	BaseURL      string        // Base URL when Source is http
	FetchTimeout time.Duration // Per-dataset fetch timeout (default: 10s)
	CacheTTL     time.Duration // Bundle cache TTL; 0 disables caching (default: 5m)
	CatalogPath  string        // Optional YAML catalog overlay
	Watch        bool          // Invalidate the cache when files in DataPath change (dir source only, default: true)
}

// AssistantConfig contains chat assistant configuration.
type AssistantConfig struct {
	Provider   string        // Assistant provider: proxy, anthropic, openai, ollama (default: proxy)
	ProxyURL   string        // Chat proxy base URL (default: http://localhost:3001)
	APIKey     string        // API key for direct providers
	BaseURL    string        // Custom base URL for direct providers
	Model      string        // Model identifier; empty selects the provider default (claude-sonnet-4-20250514 for proxy and anthropic)
	MaxTokens  int           // Token budget per reply (default: 2048)
	Timeout    time.Duration // Request-scoped deadline for one assistant call (default: 60s)
	MaxHistory int           // Conversation messages forwarded per turn (default: 20)
}

// RateLimitConfig contains limits for the chat endpoints.
type RateLimitConfig struct {
	ChatRequestsPerSecond float64 // Sustained chat requests per second (default: 1)
	ChatBurst             int     // Chat burst size (default: 5)
}

// FeaturesConfig contains feature flags.
type FeaturesConfig struct {
	EnableChat    bool // Enable /api/chat and /ws/chat (default: true)
	EnableMetrics bool // Enable /metrics (default: true)
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// All environment variables use the ENERGY_ prefix.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:           getEnvInt("ENERGY_PORT", 8080),
			Host:           getEnv("ENERGY_HOST", "127.0.0.1"),
			AllowedOrigins: getEnv("ENERGY_ALLOWED_ORIGINS", "http://localhost:5173"),
		},
		Data: DataConfig{
			Source:       getEnv("ENERGY_DATA_SOURCE", "dir"),
			DataPath:     getEnv("ENERGY_DATA_PATH", "./public/data"),
			BaseURL:      getEnv("ENERGY_DATA_BASE_URL", ""),
			FetchTimeout: getEnvDuration("ENERGY_FETCH_TIMEOUT", 10*time.Second),
			CacheTTL:     getEnvDuration("ENERGY_CACHE_TTL", 5*time.Minute),
			CatalogPath:  getEnv("ENERGY_CATALOG_PATH", ""),
			Watch:        getEnvBool("ENERGY_DATA_WATCH", true),
		},
		Assistant: AssistantConfig{
			Provider:   getEnv("ENERGY_ASSISTANT_PROVIDER", "proxy"),
			ProxyURL:   getEnv("ENERGY_ASSISTANT_PROXY_URL", "http://localhost:3001"),
			APIKey:     getEnv("ENERGY_ASSISTANT_API_KEY", ""),
			BaseURL:    getEnv("ENERGY_ASSISTANT_BASE_URL", ""),
			Model:      getEnv("ENERGY_ASSISTANT_MODEL", ""),
			MaxTokens:  getEnvInt("ENERGY_ASSISTANT_MAX_TOKENS", 2048),
			Timeout:    getEnvDuration("ENERGY_ASSISTANT_TIMEOUT", 60*time.Second),
			MaxHistory: getEnvInt("ENERGY_ASSISTANT_MAX_HISTORY", 20),
		},
		RateLimit: RateLimitConfig{
			ChatRequestsPerSecond: getEnvFloat("ENERGY_CHAT_RPS", 1.0),
			ChatBurst:             getEnvInt("ENERGY_CHAT_BURST", 5),
		},
		Features: FeaturesConfig{
			EnableChat:    getEnvBool("ENERGY_ENABLE_CHAT", true),
			EnableMetrics: getEnvBool("ENERGY_ENABLE_METRICS", true),
		},
	}, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "30s", "5m")
// or returns a default value when unset or unparsable.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

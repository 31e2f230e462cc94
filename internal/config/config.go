// Package config provides configuration types and helpers for skiff.
package config

import (
	"fmt"
	"time"
)

// Config holds the application-wide configuration.
type Config struct {
	Format     string                     `mapstructure:"format"`
	Verbose    bool                       `mapstructure:"verbose"`
	Providers  ProvidersConfig            `mapstructure:"providers"`
	RateLimits map[string]RateLimitConfig `mapstructure:"rate_limits"`
	Health     HealthConfig               `mapstructure:"health"`
}

// ProvidersConfig selects and configures the vendor integrations.
type ProvidersConfig struct {
	// Default optionally pins routing to one provider id. Empty means
	// capability-based routing.
	Default string `mapstructure:"default"`

	Ollama OllamaConfig `mapstructure:"ollama"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`            // API endpoint
	Model          string `mapstructure:"model"`           // Default chat model
	EmbeddingModel string `mapstructure:"embedding_model"` // e.g., "nomic-embed-text"
}

// OpenAIConfig holds settings for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	APIKey         string `mapstructure:"api_key"`  // Optional: read from OPENAI_API_KEY if empty
	BaseURL        string `mapstructure:"base_url"` // e.g., "https://api.openai.com/v1"
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`

	// FallbackModels are tried in order when no model is configured or
	// requested. Held as data so vendor lists live in one place.
	FallbackModels []string `mapstructure:"fallback_models"`
}

// RateLimitConfig configures one provider's token bucket.
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// HealthConfig configures the provider health checker.
type HealthConfig struct {
	// Timeout bounds each probe. Zero means the checker default (5s).
	Timeout time.Duration `mapstructure:"timeout"`
}

// Validate checks the configuration for values that would fail later in
// harder-to-diagnose ways.
func (c *Config) Validate() error {
	for id, rl := range c.RateLimits {
		if rl.MaxRequests <= 0 {
			return fmt.Errorf("rate_limits.%s.max_requests must be positive, got %d", id, rl.MaxRequests)
		}
		if rl.Window <= 0 {
			return fmt.Errorf("rate_limits.%s.window must be positive, got %s", id, rl.Window)
		}
	}
	if c.Health.Timeout < 0 {
		return fmt.Errorf("health.timeout cannot be negative, got %s", c.Health.Timeout)
	}
	if c.Providers.OpenAI.Enabled && c.Providers.OpenAI.BaseURL == "" {
		return fmt.Errorf("providers.openai.base_url is required when openai is enabled")
	}
	return nil
}

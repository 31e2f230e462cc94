// Package orchestrator assembles the library: it builds providers from
// configuration, registers them, and runs each request through intent
// detection, capability routing, rate limiting, and conversation state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/harborml/skiff/internal/config"
	"github.com/harborml/skiff/internal/conversation"
	"github.com/harborml/skiff/internal/health"
	"github.com/harborml/skiff/internal/intent"
	"github.com/harborml/skiff/internal/llm"
	"github.com/harborml/skiff/internal/llm/ollama"
	"github.com/harborml/skiff/internal/llm/openaicompat"
	"github.com/harborml/skiff/internal/ratelimit"
	"github.com/harborml/skiff/internal/registry"
	"github.com/harborml/skiff/internal/router"
)

// Orchestrator owns the provider directory and the per-request pipeline.
type Orchestrator struct {
	registry      *registry.Registry
	router        *router.Router
	limits        *ratelimit.Table
	health        *health.Checker
	conversations *conversation.Manager
	defaultID     string
	logger        *slog.Logger
}

// New builds an orchestrator from configuration. Providers marked
// enabled are constructed and registered; rate limits and the health
// probe timeout come from the same config.
func New(cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		registry:      registry.New(logger),
		limits:        ratelimit.NewTable(),
		health:        health.NewChecker(cfg.Health.Timeout, logger),
		conversations: conversation.NewManager(logger),
		defaultID:     cfg.Providers.Default,
		logger:        logger,
	}
	o.router = router.New(intent.NewDetector(logger), o.registry, logger)

	if cfg.Providers.Ollama.Enabled {
		p, err := ollama.New(ollama.Config{
			Host:           cfg.Providers.Ollama.Host,
			Model:          cfg.Providers.Ollama.Model,
			EmbeddingModel: cfg.Providers.Ollama.EmbeddingModel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("building ollama provider: %w", err)
		}
		if err := o.registry.Register(p); err != nil {
			return nil, err
		}
		logger.Info("initialized ollama provider", "host", cfg.Providers.Ollama.Host, "model", cfg.Providers.Ollama.Model)
	}

	if cfg.Providers.OpenAI.Enabled {
		apiKey := resolveAPIKey(cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("openai api key not configured: set OPENAI_API_KEY or providers.openai.api_key")
		}
		p, err := openaicompat.New(openaicompat.Config{
			ID:             "openai",
			BaseURL:        cfg.Providers.OpenAI.BaseURL,
			APIKey:         apiKey,
			Model:          cfg.Providers.OpenAI.Model,
			EmbeddingModel: cfg.Providers.OpenAI.EmbeddingModel,
			FallbackModels: cfg.Providers.OpenAI.FallbackModels,
		}, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("building openai provider: %w", err)
		}
		if err := o.registry.Register(p); err != nil {
			return nil, err
		}
		logger.Info("initialized openai provider", "base_url", cfg.Providers.OpenAI.BaseURL, "model", cfg.Providers.OpenAI.Model)
	}

	for id, rl := range cfg.RateLimits {
		if err := o.limits.Configure(id, rl.MaxRequests, rl.Window); err != nil {
			return nil, fmt.Errorf("rate limit for %s: %w", id, err)
		}
	}

	return o, nil
}

// resolveAPIKey checks config first, then falls back to the environment.
func resolveAPIKey(configKey, envVarName string) string {
	if configKey != "" {
		return configKey
	}
	return os.Getenv(envVarName)
}

// Registry exposes the provider directory.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// Conversations exposes the conversation manager.
func (o *Orchestrator) Conversations() *conversation.Manager { return o.conversations }

// Health exposes the health checker.
func (o *Orchestrator) Health() *health.Checker { return o.health }

// Limits exposes the rate limiter table.
func (o *Orchestrator) Limits() *ratelimit.Table { return o.limits }

// resolve routes the request and gates it through the provider's rate
// limiter. providerID overrides routing; the configured default provider
// applies when providerID is empty.
func (o *Orchestrator) resolve(ctx context.Context, providerID string, req llm.Request) (llm.Provider, error) {
	if providerID == "" {
		providerID = o.defaultID
	}
	p, err := o.router.Route(providerID, req)
	if err != nil {
		return nil, err
	}
	if err := o.limits.Acquire(ctx, p.ID()); err != nil {
		return nil, err
	}
	return p, nil
}

// Chat resolves a provider and runs a complete chat exchange. With a
// non-empty conversationID, the request messages are appended to the
// conversation, the provider sees the windowed history, and the
// assistant's reply is recorded.
func (o *Orchestrator) Chat(ctx context.Context, providerID, conversationID string, req llm.ChatRequest) (*llm.ChatResponse, error) {
	req, err := o.joinConversation(conversationID, req)
	if err != nil {
		return nil, err
	}
	p, err := o.resolve(ctx, providerID, req)
	if err != nil {
		return nil, err
	}

	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if conversationID != "" {
		if err := o.conversations.AddMessage(conversationID, llm.Message{
			Role:    llm.RoleAssistant,
			Content: resp.Content,
		}); err != nil {
			o.logger.Error("failed to record assistant reply", "conversation", conversationID, "error", err)
		}
	}
	return resp, nil
}

// ChatStream is the streaming variant of Chat. The assistant's full
// reply is recorded into the conversation once the stream completes.
func (o *Orchestrator) ChatStream(ctx context.Context, providerID, conversationID string, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	req, err := o.joinConversation(conversationID, req)
	if err != nil {
		return nil, err
	}
	p, err := o.resolve(ctx, providerID, req)
	if err != nil {
		return nil, err
	}

	upstream, err := p.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	if conversationID == "" {
		return upstream, nil
	}

	out := make(chan llm.StreamEvent, 10)
	go func() {
		defer close(out)
		var reply []byte
		for ev := range upstream {
			if ev.Delta != "" {
				reply = append(reply, ev.Delta...)
			}
			out <- ev
		}
		if len(reply) > 0 {
			if err := o.conversations.AddMessage(conversationID, llm.Message{
				Role:    llm.RoleAssistant,
				Content: string(reply),
			}); err != nil {
				o.logger.Error("failed to record assistant reply", "conversation", conversationID, "error", err)
			}
		}
	}()
	return out, nil
}

// contextWindow bounds how much conversation history is replayed to a
// provider, independent of the completion's MaxTokens budget.
const contextWindow = 8192

// joinConversation appends the request's new messages to the conversation
// and replaces them with the windowed history.
func (o *Orchestrator) joinConversation(conversationID string, req llm.ChatRequest) (llm.ChatRequest, error) {
	if conversationID == "" {
		return req, nil
	}
	for _, msg := range req.Messages {
		if err := o.conversations.AddMessage(conversationID, msg); err != nil {
			return req, err
		}
	}
	history, err := o.conversations.Context(conversationID, contextWindow)
	if err != nil {
		return req, err
	}
	req.Messages = history
	return req, nil
}

// Embed resolves a provider and computes embeddings.
func (o *Orchestrator) Embed(ctx context.Context, providerID string, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	p, err := o.resolve(ctx, providerID, req)
	if err != nil {
		return nil, err
	}
	return p.Embed(ctx, req)
}

// GenerateImage resolves a provider and renders an image.
func (o *Orchestrator) GenerateImage(ctx context.Context, providerID string, req llm.ImageRequest) (*llm.ImageResponse, error) {
	p, err := o.resolve(ctx, providerID, req)
	if err != nil {
		return nil, err
	}
	return p.GenerateImage(ctx, req)
}

// Synthesize resolves a provider and converts text to speech.
func (o *Orchestrator) Synthesize(ctx context.Context, providerID string, req llm.SpeechRequest) (*llm.SpeechResponse, error) {
	p, err := o.resolve(ctx, providerID, req)
	if err != nil {
		return nil, err
	}
	return p.Synthesize(ctx, req)
}

// Transcribe resolves a provider and converts speech to text.
func (o *Orchestrator) Transcribe(ctx context.Context, providerID string, req llm.TranscriptionRequest) (*llm.TranscriptionResponse, error) {
	p, err := o.resolve(ctx, providerID, req)
	if err != nil {
		return nil, err
	}
	return p.Transcribe(ctx, req)
}

// CheckAll probes every registered provider and returns the fresh
// results in registration order.
func (o *Orchestrator) CheckAll(ctx context.Context) []health.HealthResult {
	var results []health.HealthResult
	for _, id := range o.registry.IDs() {
		p := o.registry.Get(id)
		if p == nil {
			continue
		}
		result, err := o.health.Check(ctx, p)
		if err != nil {
			o.logger.Error("health check rejected", "provider", id, "error", err)
			continue
		}
		results = append(results, result)
	}
	return results
}

// Close disposes every registered provider.
func (o *Orchestrator) Close() {
	o.registry.Clear(true)
}

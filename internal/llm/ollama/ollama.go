// Package ollama implements the llm.Provider contract against a local or
// remote Ollama instance using the official API client.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/harborml/skiff/internal/llm"
)

// Config holds Ollama-specific configuration.
type Config struct {
	// ID is the provider id used for registration and routing.
	// Defaults to "ollama".
	ID string

	// Host is the Ollama API endpoint (e.g., "http://localhost:11434").
	Host string

	// Model is the default chat model (e.g., "llama3.2").
	Model string

	// EmbeddingModel is the model used for embeddings
	// (e.g., "nomic-embed-text").
	EmbeddingModel string
}

// Provider implements llm.Provider for Ollama.
type Provider struct {
	client *api.Client
	config Config
	logger *slog.Logger
}

// New creates a new Ollama provider. If cfg.Host is empty, the client is
// configured from the environment (respects OLLAMA_HOST) and falls back
// to http://localhost:11434.
func New(cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		logger.Error("failed to create ollama client from environment", "error", err)
		return nil, fmt.Errorf("%w: %v", llm.ErrProviderUnavailable, err)
	}

	if cfg.Host != "" {
		parsedURL, err := url.Parse(cfg.Host)
		if err != nil {
			logger.Error("invalid ollama host URL", "host", cfg.Host, "error", err)
			return nil, fmt.Errorf("invalid ollama host: %w", err)
		}
		client = api.NewClient(parsedURL, http.DefaultClient)
		logger.Debug("created ollama client with explicit host", "host", cfg.Host)
	} else {
		logger.Debug("created ollama client from environment")
	}

	if cfg.ID == "" {
		cfg.ID = "ollama"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
		logger.Debug("using default model", "model", cfg.Model)
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "nomic-embed-text"
		logger.Debug("using default embedding model", "model", cfg.EmbeddingModel)
	}

	return &Provider{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// ID returns the provider id.
func (p *Provider) ID() string { return p.config.ID }

// Capabilities reports the operations Ollama supports.
func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		Chat:      true,
		Embedding: true,
		Streaming: true,
	}
}

// HealthCheck probes the Ollama service.
func (p *Provider) HealthCheck(ctx context.Context) (bool, error) {
	if err := p.client.Heartbeat(ctx); err != nil {
		p.logger.Debug("ollama heartbeat failed", "error", err)
		return false, fmt.Errorf("%w: %v", llm.ErrProviderUnavailable, err)
	}
	return true, nil
}

// ListModels enumerates the models pulled into this Ollama instance.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	listResp, err := p.client.List(ctx)
	if err != nil {
		p.logger.Error("failed to list models", "error", err)
		return nil, fmt.Errorf("%w: %v", llm.ErrProviderUnavailable, err)
	}
	names := make([]string, 0, len(listResp.Models))
	for _, m := range listResp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Chat sends a conversation and returns a complete response.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	apiReq := p.chatRequest(req, false)
	p.logger.Debug("sending chat request", "model", apiReq.Model, "messages", len(req.Messages))

	var response api.ChatResponse
	err := p.client.Chat(ctx, apiReq, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		p.logger.Error("chat request failed", "error", err, "model", apiReq.Model)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", llm.ErrProviderUnavailable, err)
	}

	return &llm.ChatResponse{
		Content:      response.Message.Content,
		Model:        response.Model,
		TokensPrompt: response.PromptEvalCount,
		TokensTotal:  response.PromptEvalCount + response.EvalCount,
	}, nil
}

// ChatStream sends a conversation and streams canonical events.
// The API client delivers parsed chunks directly, so events are shaped
// here without the SSE normalizer.
func (p *Provider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	apiReq := p.chatRequest(req, true)
	p.logger.Debug("starting chat stream", "model", apiReq.Model, "messages", len(req.Messages))

	events := make(chan llm.StreamEvent, 10)
	go func() {
		defer close(events)

		done := false
		err := p.client.Chat(ctx, apiReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				events <- llm.StreamEvent{Delta: resp.Message.Content}
			}
			if resp.Done {
				done = true
				events <- llm.StreamEvent{
					Done: true,
					Metadata: map[string]any{
						"model":         resp.Model,
						"finish_reason": resp.DoneReason,
						"usage": map[string]any{
							"prompt_tokens": resp.PromptEvalCount,
							"total_tokens":  resp.PromptEvalCount + resp.EvalCount,
						},
					},
				}
			}
			return nil
		})

		if err != nil {
			p.logger.Error("chat stream failed", "error", err, "model", apiReq.Model)
			events <- llm.StreamEvent{Done: true, Err: fmt.Errorf("%w: %v", llm.ErrProviderUnavailable, err)}
			return
		}
		if !done {
			// Connection ended without an explicit terminal chunk.
			events <- llm.StreamEvent{Done: true}
		}
	}()

	return events, nil
}

// Embed computes embedding vectors using the configured embedding model.
func (p *Provider) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	if len(req.Input) == 0 {
		return nil, errors.New("input cannot be empty")
	}

	model := req.Model
	if model == "" {
		model = p.config.EmbeddingModel
	}

	resp, err := p.client.Embed(ctx, &api.EmbedRequest{
		Model: model,
		Input: req.Input,
	})
	if err != nil {
		p.logger.Error("embed request failed", "error", err, "model", model)
		return nil, fmt.Errorf("%w: %v", llm.ErrProviderUnavailable, err)
	}

	return &llm.EmbeddingResponse{
		Vectors: resp.Embeddings,
		Model:   resp.Model,
	}, nil
}

// GenerateImage is not supported by Ollama.
func (p *Provider) GenerateImage(context.Context, llm.ImageRequest) (*llm.ImageResponse, error) {
	return nil, fmt.Errorf("%w: image generation", llm.ErrUnsupported)
}

// Synthesize is not supported by Ollama.
func (p *Provider) Synthesize(context.Context, llm.SpeechRequest) (*llm.SpeechResponse, error) {
	return nil, fmt.Errorf("%w: text to speech", llm.ErrUnsupported)
}

// Transcribe is not supported by Ollama.
func (p *Provider) Transcribe(context.Context, llm.TranscriptionRequest) (*llm.TranscriptionResponse, error) {
	return nil, fmt.Errorf("%w: speech to text", llm.ErrUnsupported)
}

func (p *Provider) chatRequest(req llm.ChatRequest, stream bool) *api.ChatRequest {
	model := p.config.Model
	if req.Model != "" {
		model = req.Model
	}

	messages := make([]api.Message, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	apiReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
		},
		Stream: &stream,
	}
	if req.MaxTokens > 0 {
		apiReq.Options["num_predict"] = req.MaxTokens
	}
	return apiReq
}

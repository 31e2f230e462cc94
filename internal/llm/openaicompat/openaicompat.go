// Package openaicompat implements the llm.Provider contract against any
// OpenAI-compatible HTTP endpoint (OpenAI itself, or the many gateways
// speaking the same dialect).
//
// Streaming responses arrive as SSE and are normalized through the
// stream package, so consumers see the same canonical events as with any
// other provider.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/harborml/skiff/internal/llm"
	"github.com/harborml/skiff/internal/stream"
)

// Config holds settings for an OpenAI-compatible endpoint.
type Config struct {
	// ID is the provider id used for registration and routing.
	ID string

	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model is the default chat model.
	Model string

	// EmbeddingModel is the default embedding model.
	EmbeddingModel string

	// FallbackModels are consulted in order when no model is configured
	// or requested. Kept as configuration data so vendor lists don't
	// drift between integrations.
	FallbackModels []string
}

// Provider implements llm.Provider over HTTP.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a provider for the configured endpoint.
func New(cfg Config, client *http.Client, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ID == "" {
		return nil, errors.New("provider id cannot be empty")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	if client == nil {
		client = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{config: cfg, client: client, logger: logger}, nil
}

// ID returns the provider id.
func (p *Provider) ID() string { return p.config.ID }

// Capabilities reports the operations an OpenAI-compatible endpoint
// supports.
func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		Chat:            true,
		Embedding:       true,
		ImageGeneration: true,
		TTS:             true,
		STT:             true,
		Streaming:       true,
	}
}

// HealthCheck probes the endpoint's model listing.
func (p *Provider) HealthCheck(ctx context.Context) (bool, error) {
	if _, err := p.ListModels(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ListModels fetches the endpoint's model catalog.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	resp, err := p.do(ctx, http.MethodGet, "/models", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	models := make([]string, 0, len(body.Data))
	for _, m := range body.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// Chat sends a conversation and returns a complete response.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	payload := p.chatPayload(req, false)
	resp, err := p.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens int `json:"prompt_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	if len(body.Choices) == 0 {
		return nil, errors.New("chat response contained no choices")
	}
	return &llm.ChatResponse{
		Content:      body.Choices[0].Message.Content,
		Model:        body.Model,
		TokensPrompt: body.Usage.PromptTokens,
		TokensTotal:  body.Usage.TotalTokens,
	}, nil
}

// ChatStream sends a conversation with streaming enabled and hands the
// SSE body to the normalizer. The returned channel follows the canonical
// contract: exactly one terminal event, closed afterwards.
func (p *Provider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	payload := p.chatPayload(req, true)
	resp, err := p.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("chat stream opened", "provider", p.config.ID, "model", payload["model"])
	return stream.Consume(ctx, resp.Body, p.logger), nil
}

// Embed computes embedding vectors.
func (p *Provider) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	if len(req.Input) == 0 {
		return nil, errors.New("input cannot be empty")
	}
	model := req.Model
	if model == "" {
		model = p.config.EmbeddingModel
	}

	resp, err := p.post(ctx, "/embeddings", map[string]any{
		"model": model,
		"input": req.Input,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Model string `json:"model"`
		Data  []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding embeddings: %w", err)
	}
	vectors := make([][]float32, len(body.Data))
	for i, d := range body.Data {
		vectors[i] = d.Embedding
	}
	return &llm.EmbeddingResponse{Vectors: vectors, Model: body.Model}, nil
}

// GenerateImage renders an image from a prompt.
func (p *Provider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	if req.Prompt == "" {
		return nil, errors.New("prompt cannot be empty")
	}
	payload := map[string]any{"prompt": req.Prompt}
	if req.Model != "" {
		payload["model"] = req.Model
	}
	if req.Size != "" {
		payload["size"] = req.Size
	}

	resp, err := p.post(ctx, "/images/generations", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Data []struct {
			URL     string `json:"url"`
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding image response: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, errors.New("image response contained no data")
	}
	out := &llm.ImageResponse{URL: body.Data[0].URL}
	if body.Data[0].B64JSON != "" {
		raw, err := base64.StdEncoding.DecodeString(body.Data[0].B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decoding image payload: %w", err)
		}
		out.Data = raw
	}
	return out, nil
}

// Synthesize converts text to speech audio.
func (p *Provider) Synthesize(ctx context.Context, req llm.SpeechRequest) (*llm.SpeechResponse, error) {
	if req.Text == "" {
		return nil, errors.New("text cannot be empty")
	}
	payload := map[string]any{"input": req.Text}
	if req.Model != "" {
		payload["model"] = req.Model
	}
	if req.Voice != "" {
		payload["voice"] = req.Voice
	}

	resp, err := p.post(ctx, "/audio/speech", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	return &llm.SpeechResponse{Audio: audio, Format: "mp3"}, nil
}

// Transcribe converts speech audio to text.
func (p *Provider) Transcribe(ctx context.Context, req llm.TranscriptionRequest) (*llm.TranscriptionResponse, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("audio cannot be empty")
	}
	format := req.Format
	if format == "" {
		format = "wav"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, err
	}
	if req.Model != "" {
		if err := mw.WriteField("model", req.Model); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := p.do(ctx, http.MethodPost, "/audio/transcriptions", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding transcription: %w", err)
	}
	return &llm.TranscriptionResponse{Text: body.Text}, nil
}

// resolveModel picks the request model, then the configured default, then
// the first configured fallback.
func (p *Provider) resolveModel(requested string) string {
	if requested != "" {
		return requested
	}
	if p.config.Model != "" {
		return p.config.Model
	}
	if len(p.config.FallbackModels) > 0 {
		return p.config.FallbackModels[0]
	}
	return ""
}

func (p *Provider) chatPayload(req llm.ChatRequest, streaming bool) map[string]any {
	messages := make([]map[string]any, len(req.Messages))
	for i, msg := range req.Messages {
		m := map[string]any{
			"role":    string(msg.Role),
			"content": msg.Content,
		}
		if msg.Name != "" {
			m["name"] = msg.Name
		}
		messages[i] = m
	}

	payload := map[string]any{
		"model":       p.resolveModel(req.Model),
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if streaming {
		payload["stream"] = true
	}
	return payload
}

func (p *Provider) post(ctx context.Context, path string, payload map[string]any) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return p.do(ctx, http.MethodPost, path, bytes.NewReader(raw), "application/json")
}

// do issues an HTTP request and maps failure statuses onto the shared
// error model so callers can classify without vendor knowledge.
func (p *Provider) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
		p.logger.Debug("request failed", "provider", p.config.ID, "status", resp.StatusCode, "path", path)

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &llm.Error{Code: llm.CodeAuthError, Provider: p.config.ID, Message: msg, Err: llm.ErrAuthentication}
		default:
			return nil, &llm.Error{Code: llm.CodeTransientError, Provider: p.config.ID, Message: msg, Err: llm.ErrProviderUnavailable}
		}
	}
	return resp, nil
}

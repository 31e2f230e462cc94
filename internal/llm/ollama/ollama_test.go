package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harborml/skiff/internal/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		wantID  string
	}{
		{
			name:   "valid config with host",
			config: Config{Host: "http://localhost:11434", Model: "llama3.2"},
			wantID: "ollama",
		},
		{
			name:   "custom provider id",
			config: Config{ID: "ollama-local", Host: "http://localhost:11434"},
			wantID: "ollama-local",
		},
		{
			name:    "invalid host URL",
			config:  Config{Host: "://invalid-url"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := New(tt.config, testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if provider.ID() != tt.wantID {
				t.Errorf("ID() = %q, want %q", provider.ID(), tt.wantID)
			}
			if provider.config.Model == "" || provider.config.EmbeddingModel == "" {
				t.Error("model defaults were not applied")
			}
		})
	}
}

func TestNewNilLogger(t *testing.T) {
	if _, err := New(Config{Host: "http://localhost:11434"}, nil); err == nil {
		t.Error("New() should reject nil logger")
	}
}

func TestCapabilities(t *testing.T) {
	provider, err := New(Config{Host: "http://localhost:11434"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	caps := provider.Capabilities()
	if !caps.Chat || !caps.Embedding || !caps.Streaming {
		t.Errorf("Capabilities() = %+v, want chat+embedding+streaming", caps)
	}
	if caps.ImageGeneration || caps.TTS || caps.STT {
		t.Errorf("Capabilities() = %+v, unsupported operations must be off", caps)
	}
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		response := map[string]interface{}{
			"model":             req["model"],
			"message":           map[string]string{"role": "assistant", "content": "Test response"},
			"done":              true,
			"prompt_eval_count": 10,
			"eval_count":        20,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider, err := New(Config{Host: server.URL, Model: "test-model"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := provider.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("Chat() failed: %v", err)
	}
	if resp.Content != "Test response" {
		t.Errorf("content = %q, want %q", resp.Content, "Test response")
	}
	if resp.Model != "test-model" {
		t.Errorf("model = %q, want test-model", resp.Model)
	}
	if resp.TokensPrompt != 10 || resp.TokensTotal != 30 {
		t.Errorf("tokens = %d/%d, want 10/30", resp.TokensPrompt, resp.TokensTotal)
	}
}

func TestChatEmptyMessages(t *testing.T) {
	provider, err := New(Config{Host: "http://localhost:11434"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := provider.Chat(context.Background(), llm.ChatRequest{}); err == nil {
		t.Error("Chat() should reject empty messages")
	}
}

func TestChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		chunks := []map[string]interface{}{
			{"message": map[string]string{"content": "Hello "}, "done": false},
			{"message": map[string]string{"content": "World"}, "done": false},
			{"message": map[string]string{"content": "!"}, "done": true, "done_reason": "stop", "prompt_eval_count": 5, "eval_count": 15},
		}
		encoder := json.NewEncoder(w)
		for _, chunk := range chunks {
			if err := encoder.Encode(chunk); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
	defer server.Close()

	provider, err := New(Config{Host: server.URL, Model: "test-model"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	stream, err := provider.ChatStream(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("ChatStream() failed: %v", err)
	}

	var content strings.Builder
	var doneCount int
	var finishReason any
	for event := range stream {
		if event.Err != nil {
			t.Fatalf("stream error: %v", event.Err)
		}
		content.WriteString(event.Delta)
		if event.Done {
			doneCount++
			finishReason = event.Metadata["finish_reason"]
		}
	}

	if content.String() != "Hello World!" {
		t.Errorf("content = %q, want %q", content.String(), "Hello World!")
	}
	if doneCount != 1 {
		t.Errorf("done events = %d, want 1", doneCount)
	}
	if finishReason != "stop" {
		t.Errorf("finish_reason = %v, want stop", finishReason)
	}
}

func TestHealthCheckUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // immediately unreachable

	provider, err := New(Config{Host: server.URL}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	healthy, err := provider.HealthCheck(context.Background())
	if healthy {
		t.Error("HealthCheck() = true against a closed server")
	}
	if !errors.Is(err, llm.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"models": []map[string]interface{}{
				{"name": "llama3.2:latest", "model": "llama3.2:latest"},
				{"name": "nomic-embed-text:latest", "model": "nomic-embed-text:latest"},
			},
		})
	}))
	defer server.Close()

	provider, err := New(Config{Host: server.URL}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	models, err := provider.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || models[0] != "llama3.2:latest" {
		t.Errorf("ListModels() = %v", models)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	provider, err := New(Config{Host: "http://localhost:11434"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := provider.GenerateImage(ctx, llm.ImageRequest{Prompt: "x"}); !errors.Is(err, llm.ErrUnsupported) {
		t.Errorf("GenerateImage error = %v, want ErrUnsupported", err)
	}
	if _, err := provider.Synthesize(ctx, llm.SpeechRequest{Text: "x"}); !errors.Is(err, llm.ErrUnsupported) {
		t.Errorf("Synthesize error = %v, want ErrUnsupported", err)
	}
	if _, err := provider.Transcribe(ctx, llm.TranscriptionRequest{Audio: []byte{1}}); !errors.Is(err, llm.ErrUnsupported) {
		t.Errorf("Transcribe error = %v, want ErrUnsupported", err)
	}
}

package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	p, err := New(Config{ID: "openai", BaseURL: baseURL, APIKey: "sk-test", Model: "gpt-test"}, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid", config: Config{ID: "openai", BaseURL: "https://api.openai.com/v1"}},
		{name: "missing id", config: Config{BaseURL: "https://api.openai.com/v1"}, wantErr: true},
		{name: "missing base url", config: Config{ID: "openai"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config, nil, testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "gpt-test" {
			t.Errorf("model = %v, want gpt-test", req["model"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-test",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Hi there"}},
			},
			"usage": map[string]any{"prompt_tokens": 7, "total_tokens": 12},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Hi there" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.TokensPrompt != 7 || resp.TokensTotal != 12 {
		t.Errorf("tokens = %d/%d, want 7/12", resp.TokensPrompt, resp.TokensTotal)
	}
}

func TestChatStream_NormalizesSSE(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		chunks := []string{"Hel", "lo, ", "world", "!"}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}],\"usage\":{\"total_tokens\":9}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	events, err := p.ChatStream(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Say hello"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var content strings.Builder
	var final llm.StreamEvent
	doneCount := 0
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("stream error: %v", ev.Err)
		}
		if ev.Done {
			doneCount++
			final = ev
			continue
		}
		content.WriteString(ev.Delta)
	}

	if content.String() != "Hello, world!" {
		t.Errorf("content = %q, want %q", content.String(), "Hello, world!")
	}
	if doneCount != 1 {
		t.Errorf("terminal events = %d, want 1", doneCount)
	}
	if final.Metadata["finish_reason"] != "stop" {
		t.Errorf("finish_reason = %v, want stop", final.Metadata["finish_reason"])
	}
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "embed-test",
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2}},
				{"embedding": []float32{0.3, 0.4}},
			},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	resp, err := p.Embed(context.Background(), llm.EmbeddingRequest{Input: []string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Vectors) != 2 || len(resp.Vectors[0]) != 2 {
		t.Errorf("vectors = %v", resp.Vectors)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode llm.Code
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantCode: llm.CodeAuthError},
		{name: "forbidden", status: http.StatusForbidden, wantCode: llm.CodeAuthError},
		{name: "rate limited", status: http.StatusTooManyRequests, wantCode: llm.CodeTransientError},
		{name: "server error", status: http.StatusInternalServerError, wantCode: llm.CodeTransientError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			p := newTestProvider(t, server.URL)
			_, err := p.Chat(context.Background(), llm.ChatRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			})
			if llm.CodeOf(err) != tt.wantCode {
				t.Errorf("error code = %q, want %q (err: %v)", llm.CodeOf(err), tt.wantCode, err)
			}
			if tt.wantCode == llm.CodeAuthError && !errors.Is(err, llm.ErrAuthentication) {
				t.Errorf("auth error should wrap ErrAuthentication: %v", err)
			}
		})
	}
}

func TestHealthCheckAndListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "gpt-test"}, {"id": "embed-test"}},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	healthy, err := p.HealthCheck(context.Background())
	if err != nil || !healthy {
		t.Fatalf("HealthCheck = %v, %v", healthy, err)
	}

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || models[0] != "gpt-test" {
		t.Errorf("models = %v", models)
	}
}

func TestResolveModel_FallbackFromConfig(t *testing.T) {
	p, err := New(Config{
		ID:             "gw",
		BaseURL:        "http://example.invalid/v1",
		FallbackModels: []string{"fallback-a", "fallback-b"},
	}, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		requested string
		want      string
	}{
		{name: "explicit request wins", requested: "requested", want: "requested"},
		{name: "fallback list used when nothing configured", requested: "", want: "fallback-a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.resolveModel(tt.requested); got != tt.want {
				t.Errorf("resolveModel(%q) = %q, want %q", tt.requested, got, tt.want)
			}
		})
	}
}

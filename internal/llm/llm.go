// Package llm defines the provider contract shared by every vendor
// integration, along with the canonical request, response, and streaming
// event shapes the rest of the library is written against.
//
// The package defines a Provider interface that enables swapping between
// different AI providers (Ollama, OpenAI-compatible endpoints) without
// changing consuming code. Consumers receive one normalized StreamEvent
// shape regardless of the vendor wire format.
//
// Example usage:
//
//	events, err := provider.ChatStream(ctx, llm.ChatRequest{
//	    Messages: []llm.Message{
//	        {Role: llm.RoleUser, Content: "Hello"},
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    if ev.Err != nil {
//	        return ev.Err
//	    }
//	    fmt.Print(ev.Delta)
//	}
package llm

import (
	"context"
	"io"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// Message represents a single message in a conversation.
type Message struct {
	// Role identifies the message sender.
	Role Role

	// Content is the message text.
	Content string

	// Name optionally identifies the function or participant that
	// authored the message.
	Name string

	// Meta carries provider- or caller-specific annotations.
	Meta map[string]any
}

// Capabilities describes which operations a provider supports.
// Capability routing matches requests against these flags.
type Capabilities struct {
	Chat            bool
	Embedding       bool
	ImageGeneration bool
	TTS             bool
	STT             bool
	Streaming       bool
}

// Canonical capability names, as exposed to callers and matched by the
// registry. Aliases ("embed", "image_generation") are resolved by the
// registry, not here.
const (
	CapChat      = "chat"
	CapEmbedding = "embedding"
	CapImage     = "image"
	CapTTS       = "tts"
	CapSTT       = "stt"
	CapStreaming = "streaming"
)

// Supports reports whether the named capability flag is set.
// Matching is exact; alias resolution belongs to the registry.
func (c Capabilities) Supports(name string) bool {
	switch name {
	case CapChat:
		return c.Chat
	case CapEmbedding:
		return c.Embedding
	case CapImage:
		return c.ImageGeneration
	case CapTTS:
		return c.TTS
	case CapSTT:
		return c.STT
	case CapStreaming:
		return c.Streaming
	default:
		return false
	}
}

// StreamEvent is the canonical normalized streaming shape. All downstream
// consumers receive this regardless of the vendor wire format.
//
// For a given logical stream, events are totally ordered; exactly one event
// has Done=true and it is terminal. The terminal event may carry aggregate
// metadata (token usage, finish reason) when the provider reported any.
type StreamEvent struct {
	// Delta is the incremental text chunk. Empty on the terminal event.
	Delta string

	// Done indicates the final event in the stream.
	Done bool

	// Metadata carries aggregate stream metadata, normally only on the
	// terminal event.
	Metadata map[string]any

	// Err reports a transport failure. When Err is non-nil the stream is
	// terminated; no further events follow.
	Err error
}

// ChatResponse is a complete (non-streaming) chat result.
type ChatResponse struct {
	Content      string
	Model        string
	TokensPrompt int
	TokensTotal  int
}

// EmbeddingResponse holds one vector per input.
type EmbeddingResponse struct {
	Vectors [][]float32
	Model   string
}

// ImageResponse is the result of an image generation call.
type ImageResponse struct {
	// Data holds the raw image bytes, or is nil when the provider
	// returned a URL instead.
	Data []byte
	URL  string
}

// SpeechResponse is the result of a text-to-speech call.
type SpeechResponse struct {
	Audio  []byte
	Format string
}

// TranscriptionResponse is the result of a speech-to-text call.
type TranscriptionResponse struct {
	Text string
}

// Provider defines the contract every vendor integration implements.
// Implementations must be safe for concurrent use.
//
// A provider only needs to implement the operations its Capabilities
// advertise; unsupported operations return an error.
type Provider interface {
	// ID returns the provider's unique, non-empty identifier.
	ID() string

	// Capabilities reports which operations this provider supports.
	Capabilities() Capabilities

	// HealthCheck probes the provider for liveness. It returns true when
	// the provider is reachable and serving, false when it responded but
	// reported itself unhealthy, and an error on probe failure.
	HealthCheck(ctx context.Context) (bool, error)

	// Chat sends a conversation and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream sends a conversation and returns a channel of canonical
	// streaming events. The channel is closed after the terminal event.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)

	// Embed computes embedding vectors for the request inputs.
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)

	// GenerateImage renders an image from a text prompt.
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)

	// Synthesize converts text to speech audio.
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResponse, error)

	// Transcribe converts speech audio to text.
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
}

// ModelLister is implemented by providers that can enumerate their
// available models. The health checker prefers this probe when present,
// and callers may consult it as a model-name oracle.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Disposer is implemented by providers that hold resources needing
// explicit teardown. The registry awaits Close during unregistration.
type Disposer = io.Closer

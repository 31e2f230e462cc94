package llm

// Request is the closed set of operation requests the library accepts.
// It is a sealed interface: only the request types in this package satisfy
// it, so capability dispatch can switch over the concrete kinds
// exhaustively instead of inspecting loosely typed parameter maps.
type Request interface {
	// Kind names the request's operation category.
	Kind() RequestKind
}

// RequestKind names a concrete request type.
type RequestKind string

const (
	KindChat          RequestKind = "chat"
	KindEmbedding     RequestKind = "embedding"
	KindImage         RequestKind = "image"
	KindSpeech        RequestKind = "speech"
	KindTranscription RequestKind = "transcription"
)

// ChatRequest carries a free-form conversation. Its capability intent is
// not implied by the type alone; the intent detector inspects the message
// content to classify it.
type ChatRequest struct {
	// Messages is the conversation so far, in chronological order.
	Messages []Message

	// Model optionally overrides the provider's default model.
	Model string

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float32

	// MaxTokens limits the response length (0 = provider default).
	MaxTokens int
}

func (ChatRequest) Kind() RequestKind { return KindChat }

// EmbeddingRequest asks for embedding vectors over one or more inputs.
type EmbeddingRequest struct {
	Input []string
	Model string
}

func (EmbeddingRequest) Kind() RequestKind { return KindEmbedding }

// ImageRequest asks for an image rendered from a text prompt.
type ImageRequest struct {
	Prompt string
	Model  string

	// Size is the requested output dimensions, e.g. "1024x1024".
	Size string
}

func (ImageRequest) Kind() RequestKind { return KindImage }

// SpeechRequest asks for text-to-speech synthesis.
type SpeechRequest struct {
	Text  string
	Voice string
	Model string
}

func (SpeechRequest) Kind() RequestKind { return KindSpeech }

// TranscriptionRequest asks for speech-to-text transcription.
type TranscriptionRequest struct {
	Audio []byte

	// Format is the audio container format, e.g. "wav", "mp3".
	Format string
	Model  string
}

func (TranscriptionRequest) Kind() RequestKind { return KindTranscription }

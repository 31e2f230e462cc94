// Package intent classifies a request into a canonical capability intent.
//
// Explicitly shaped requests (embedding, image, speech, transcription)
// carry their intent in the type system and classify with full confidence.
// Free-form chat requests are scanned for capability keywords; later
// messages take priority when intents conflict. More sophisticated
// classification could use embeddings.
package intent

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/harborml/skiff/internal/llm"
)

// Type is the canonical intent category.
type Type string

const (
	TypeChat            Type = "chat"
	TypeImageGeneration Type = "image_generation"
	TypeEmbedding       Type = "embedding"
	TypeTTS             Type = "tts"
	TypeSTT             Type = "stt"
)

// Detection methods recorded in intent metadata.
const (
	MethodExplicitRequestType = "explicit_request_type"
	MethodKeywordMatching     = "keyword_matching"
	MethodDefault             = "default"
)

// Intent is the result of one detection call. Confidence is always in
// [0, 1]. Immutable once returned.
type Intent struct {
	Type       Type
	Capability string
	Confidence float64
	Metadata   map[string]any
}

// keywordSet maps an intent to the disjoint keywords that signal it in
// user-authored chat content.
type keywordSet struct {
	intentType Type
	capability string
	keywords   []string
}

// Keyword sets are checked in this order; within a single message the set
// with the most distinct matches wins, earlier sets breaking ties.
var keywordSets = []keywordSet{
	{
		intentType: TypeImageGeneration,
		capability: llm.CapImage,
		keywords:   []string{"draw", "sketch", "image of", "picture of", "illustration", "painting", "generate an image", "render"},
	},
	{
		intentType: TypeEmbedding,
		capability: llm.CapEmbedding,
		keywords:   []string{"embedding", "embed this", "vector representation", "semantic similarity", "vectorize"},
	},
	{
		intentType: TypeTTS,
		capability: llm.CapTTS,
		keywords:   []string{"text to speech", "read aloud", "say this out loud", "narrate", "synthesize speech", "voice over"},
	},
	{
		intentType: TypeSTT,
		capability: llm.CapSTT,
		keywords:   []string{"speech to text", "transcribe", "transcription", "dictation", "convert audio to text"},
	},
}

// Detector classifies requests. Safe for concurrent use.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates an intent detector.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Detect classifies the request into a capability intent.
//
// Requests whose static type already implies a capability return that
// intent with confidence 1.0. Chat requests are classified by scanning
// user message content: a keyword match yields that capability with
// confidence scaling in (0.5, 1.0] with the number of distinct matched
// keywords; otherwise the request defaults to chat at 0.8 when any user
// message has content, or 0.5 when no user message exists.
func (d *Detector) Detect(req llm.Request) (Intent, error) {
	switch r := req.(type) {
	case llm.ChatRequest:
		return d.detectChat(r), nil
	case llm.EmbeddingRequest:
		return explicit(TypeEmbedding, llm.CapEmbedding), nil
	case llm.ImageRequest:
		return explicit(TypeImageGeneration, llm.CapImage), nil
	case llm.SpeechRequest:
		return explicit(TypeTTS, llm.CapTTS), nil
	case llm.TranscriptionRequest:
		return explicit(TypeSTT, llm.CapSTT), nil
	default:
		return Intent{}, fmt.Errorf("unrecognized request shape %T", req)
	}
}

func explicit(t Type, capability string) Intent {
	return Intent{
		Type:       t,
		Capability: capability,
		Confidence: 1.0,
		Metadata:   map[string]any{"detection_method": MethodExplicitRequestType},
	}
}

func (d *Detector) detectChat(req llm.ChatRequest) Intent {
	hasUserContent := false

	// Later messages take priority: scan user content newest-first and
	// stop at the first message that matches any keyword set.
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role != llm.RoleUser {
			continue
		}
		if strings.TrimSpace(msg.Content) != "" {
			hasUserContent = true
		}

		content := strings.ToLower(msg.Content)
		var best *keywordSet
		var bestMatches []string
		for s := range keywordSets {
			set := &keywordSets[s]
			var matched []string
			for _, kw := range set.keywords {
				if strings.Contains(content, kw) {
					matched = append(matched, kw)
				}
			}
			if len(matched) > len(bestMatches) {
				best = set
				bestMatches = matched
			}
		}

		if best != nil {
			conf := keywordConfidence(len(bestMatches))
			d.logger.Debug("keyword intent match",
				"type", best.intentType, "keywords", bestMatches, "confidence", conf)
			return Intent{
				Type:       best.intentType,
				Capability: best.capability,
				Confidence: conf,
				Metadata: map[string]any{
					"detection_method": MethodKeywordMatching,
					"matched_keywords": bestMatches,
				},
			}
		}
	}

	conf := 0.5
	if hasUserContent {
		conf = 0.8
	}
	return Intent{
		Type:       TypeChat,
		Capability: llm.CapChat,
		Confidence: conf,
		Metadata:   map[string]any{"detection_method": MethodDefault},
	}
}

// keywordConfidence maps the number of distinct matched keywords to a
// confidence in (0.5, 1.0], monotonically increasing and capped after
// four matches.
func keywordConfidence(matches int) float64 {
	if matches > 4 {
		matches = 4
	}
	return 0.6 + 0.1*float64(matches)
}

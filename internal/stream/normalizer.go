package stream

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/harborml/skiff/internal/llm"
)

// State identifies the normalizer's position in its parse loop.
type State int

const (
	// StateWaitingLine buffers input until a full line is available.
	StateWaitingLine State = iota

	// StateDone is terminal: the single Done=true event has been emitted
	// and no further events follow.
	StateDone
)

// doneSentinel is the non-JSON termination token some providers send as a
// bare data payload.
var doneSentinel = []byte("[DONE]")

// Normalizer converts one raw incremental byte stream into canonical
// llm.StreamEvents. It understands SSE framing (event:/data: prefixed
// lines, blank-line separators) as well as bare newline-delimited JSON,
// and tolerates both a single JSON object and an array of objects per
// data line.
//
// Malformed or incomplete JSON payloads are skipped without terminating
// the stream. Exactly one terminal event is produced per stream: either
// when the wire signals completion or, failing that, synthesized by
// Finish when the stream closes.
type Normalizer struct {
	lines  LineReader
	state  State
	logger *slog.Logger

	// eventName is the most recent SSE "event:" field, reset at each
	// blank-line separator.
	eventName string

	// meta accumulates aggregate stream metadata (usage, finish reason,
	// model) for the terminal event.
	meta map[string]any
}

// NewNormalizer creates a Normalizer for a single stream.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Done reports whether the terminal event has been emitted.
func (n *Normalizer) Done() bool { return n.state == StateDone }

// Feed consumes the next chunk of raw bytes and returns the canonical
// events it completes, in order. A chunk may complete zero events (partial
// line), or several (multiple lines, or an array payload).
func (n *Normalizer) Feed(p []byte) []llm.StreamEvent {
	if n.state == StateDone {
		return nil
	}
	n.lines.Feed(p)

	var events []llm.StreamEvent
	for {
		line, ok := n.lines.Next()
		if !ok {
			return events
		}
		events = append(events, n.processLine(line)...)
		if n.state == StateDone {
			return events
		}
	}
}

// Finish signals that the underlying byte stream has closed. Any trailing
// partial line is processed, and if no terminal event was ever produced,
// exactly one is synthesized.
func (n *Normalizer) Finish() []llm.StreamEvent {
	if n.state == StateDone {
		return nil
	}
	var events []llm.StreamEvent
	if line, ok := n.lines.Flush(); ok {
		events = append(events, n.processLine(line)...)
	}
	if n.state != StateDone {
		events = append(events, n.terminalEvent())
	}
	return events
}

// processLine runs one WAITING_LINE → PARSING_PAYLOAD → EMIT transition.
func (n *Normalizer) processLine(line []byte) []llm.StreamEvent {
	line = bytes.TrimSpace(line)

	// Blank line: SSE dispatch boundary, resets the event name.
	if len(line) == 0 {
		n.eventName = ""
		return nil
	}

	// SSE comment.
	if line[0] == ':' {
		return nil
	}

	if rest, ok := bytes.CutPrefix(line, []byte("event:")); ok {
		n.eventName = string(bytes.TrimSpace(rest))
		return nil
	}

	payload := line
	if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
		payload = bytes.TrimSpace(rest)
	}

	if bytes.Equal(payload, doneSentinel) {
		return []llm.StreamEvent{n.terminalEvent()}
	}

	return n.parsePayload(payload)
}

// parsePayload decodes a data payload as a JSON object or an array of
// objects. A payload that fails to decode is dropped; the stream
// continues with the next line.
func (n *Normalizer) parsePayload(payload []byte) []llm.StreamEvent {
	var raws []json.RawMessage
	if len(payload) > 0 && payload[0] == '[' {
		if err := json.Unmarshal(payload, &raws); err != nil {
			n.logger.Debug("skipping malformed stream payload", "error", err)
			return nil
		}
	} else {
		if !json.Valid(payload) {
			n.logger.Debug("skipping malformed stream payload")
			return nil
		}
		raws = []json.RawMessage{payload}
	}

	var events []llm.StreamEvent
	for _, raw := range raws {
		var chunk wireChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			n.logger.Debug("skipping undecodable stream object", "error", err)
			continue
		}
		events = append(events, n.emit(chunk)...)
		if n.state == StateDone {
			break
		}
	}
	return events
}

// wireChunk is the superset of the stream object shapes the normalizer
// understands. Vendors populate disjoint subsets of these fields.
type wireChunk struct {
	// OpenAI-compatible chunk.
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]any `json:"usage"`
	Model string         `json:"model"`

	// Anthropic-style multi-stage event vocabulary.
	Type  string `json:"type"`
	Delta struct {
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`

	// Ollama-style single-shot chunk.
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// emit produces zero or more delta events for one decoded stream object
// and folds any aggregate metadata into the pending terminal event.
func (n *Normalizer) emit(chunk wireChunk) []llm.StreamEvent {
	var events []llm.StreamEvent

	if chunk.Model != "" {
		n.setMeta("model", chunk.Model)
	}
	if len(chunk.Usage) > 0 {
		n.setMeta("usage", chunk.Usage)
	}

	// Anthropic-style events are dispatched by type. Start/stop markers
	// carry no text; message_stop terminates the stream.
	switch chunk.Type {
	case "message_start", "content_block_start", "content_block_stop", "ping":
		return nil
	case "content_block_delta":
		if chunk.Delta.Text != "" {
			events = append(events, llm.StreamEvent{Delta: chunk.Delta.Text})
		}
		return events
	case "message_delta":
		if chunk.Delta.StopReason != "" {
			n.setMeta("finish_reason", chunk.Delta.StopReason)
		}
		return nil
	case "message_stop":
		return append(events, n.terminalEvent())
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			events = append(events, llm.StreamEvent{Delta: choice.Delta.Content})
		}
		if choice.Text != "" {
			events = append(events, llm.StreamEvent{Delta: choice.Text})
		}
		if choice.FinishReason != "" {
			n.setMeta("finish_reason", choice.FinishReason)
		}
	}

	if chunk.Message.Content != "" {
		events = append(events, llm.StreamEvent{Delta: chunk.Message.Content})
	}
	if chunk.Response != "" {
		events = append(events, llm.StreamEvent{Delta: chunk.Response})
	}

	if chunk.Done {
		if chunk.DoneReason != "" {
			n.setMeta("finish_reason", chunk.DoneReason)
		}
		if chunk.PromptEvalCount > 0 || chunk.EvalCount > 0 {
			n.setMeta("usage", map[string]any{
				"prompt_tokens": chunk.PromptEvalCount,
				"total_tokens":  chunk.PromptEvalCount + chunk.EvalCount,
			})
		}
		events = append(events, n.terminalEvent())
	}

	return events
}

// terminalEvent builds the single Done=true event and moves the machine
// to StateDone. Idempotence is enforced by the callers' StateDone checks.
func (n *Normalizer) terminalEvent() llm.StreamEvent {
	n.state = StateDone
	return llm.StreamEvent{Done: true, Metadata: n.meta}
}

func (n *Normalizer) setMeta(key string, value any) {
	if n.meta == nil {
		n.meta = make(map[string]any)
	}
	n.meta[key] = value
}

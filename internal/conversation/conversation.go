// Package conversation maintains ordered per-conversation message history
// with token-bounded context windowing.
//
// State is held in memory only; persistence across process restarts is
// out of scope for this library.
package conversation

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborml/skiff/internal/llm"
)

// Conversation is an append-only message history identified by a unique,
// non-empty id.
type Conversation struct {
	ID        string
	Messages  []llm.Message
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Manager owns the conversation map. All methods are safe for concurrent
// use; operations on different conversations do not serialize message
// copies under the write lock longer than needed.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	logger        *slog.Logger
}

// NewManager creates an empty conversation manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		conversations: make(map[string]*Conversation),
		logger:        logger,
	}
}

// Create starts a new conversation. With an empty id, a unique one is
// generated. Returns an error if the id already exists.
func (m *Manager) Create(id string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	} else if _, exists := m.conversations[id]; exists {
		return nil, errors.New("conversation already exists: " + id)
	}

	now := time.Now()
	conv := &Conversation{
		ID:        id,
		Metadata:  make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.conversations[id] = conv
	m.logger.Debug("created conversation", "id", id)
	return m.snapshot(conv), nil
}

// AddMessage appends a message to the conversation's history and bumps
// UpdatedAt. Fails with CONVERSATION_NOT_FOUND for unknown ids.
func (m *Manager) AddMessage(id string, msg llm.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return &llm.Error{Code: llm.CodeConversationNotFound, Message: "unknown conversation: " + id}
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now()
	return nil
}

// Get returns a copy of the conversation, or nil if the id is unknown.
func (m *Manager) Get(id string) *Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil
	}
	return m.snapshot(conv)
}

// Context returns the conversation's messages in chronological order.
// With maxTokens <= 0 the full history is returned. Otherwise the longest
// suffix of messages whose cumulative approximate cost fits the budget is
// selected; earlier messages are dropped first.
//
// Cost is a length heuristic, not an exact tokenizer: len(content)/4
// plus a fixed 4 tokens of per-message overhead, matching the common
// ~4-characters-per-token estimate for English text.
func (m *Manager) Context(id string, maxTokens int) ([]llm.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, &llm.Error{Code: llm.CodeConversationNotFound, Message: "unknown conversation: " + id}
	}

	msgs := conv.Messages
	if maxTokens > 0 {
		budget := maxTokens
		start := len(msgs)
		for start > 0 {
			cost := estimateTokens(msgs[start-1])
			if cost > budget {
				break
			}
			budget -= cost
			start--
		}
		msgs = msgs[start:]
	}

	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Delete removes the conversation, reporting whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return false
	}
	delete(m.conversations, id)
	m.logger.Debug("deleted conversation", "id", id)
	return true
}

// Has reports whether the conversation exists.
func (m *Manager) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conversations[id]
	return ok
}

// List returns copies of all conversations, in no particular order.
func (m *Manager) List() []*Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		out = append(out, m.snapshot(conv))
	}
	return out
}

// Count returns the number of conversations.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// Clear removes all conversations.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations = make(map[string]*Conversation)
}

// snapshot copies a conversation so callers never share the internal
// message slice. Callers must hold at least a read lock.
func (m *Manager) snapshot(conv *Conversation) *Conversation {
	out := &Conversation{
		ID:        conv.ID,
		Messages:  make([]llm.Message, len(conv.Messages)),
		Metadata:  conv.Metadata,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	copy(out.Messages, conv.Messages)
	return out
}

// estimateTokens approximates a message's token cost: content length at
// ~4 characters per token, plus fixed overhead for role and separators.
func estimateTokens(msg llm.Message) int {
	return len(msg.Content)/4 + 4
}

// Package registry provides an in-memory directory of provider instances,
// queryable by id or capability.
package registry

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/harborml/skiff/internal/llm"
)

// capabilityAliases maps alternate capability spellings onto the
// canonical names used by llm.Capabilities.
var capabilityAliases = map[string]string{
	"embed":            llm.CapEmbedding,
	"embeddings":       llm.CapEmbedding,
	"image_generation": llm.CapImage,
	"imagegeneration":  llm.CapImage,
	"stream":           llm.CapStreaming,
}

// Registry is a directory of registered providers. Registration order is
// preserved and exposed through IDs and ByCapability. All methods are
// safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]llm.Provider
	order     []string
	logger    *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[string]llm.Provider),
		logger:    logger,
	}
}

// Register adds a provider. It fails with INVALID_PROVIDER_ID when the
// provider's id is empty and DUPLICATE_PROVIDER when the id is taken.
func (r *Registry) Register(p llm.Provider) error {
	if p == nil {
		return llm.Errf(llm.CodeInvalidProviderID, "provider cannot be nil")
	}
	id := p.ID()
	if id == "" {
		return llm.Errf(llm.CodeInvalidProviderID, "provider id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; exists {
		return &llm.Error{Code: llm.CodeDuplicateProvider, Provider: id, Message: "provider already registered"}
	}
	r.providers[id] = p
	r.order = append(r.order, id)
	r.logger.Debug("registered provider", "id", id)
	return nil
}

// Get returns the provider with the given id, or nil if unknown.
func (r *Registry) Get(id string) llm.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[id]
}

// IDs returns all registered provider ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ByCapability returns the providers supporting the named capability, in
// registration order. Matching is case-insensitive and honors known
// aliases. Unknown capability names yield an empty list, never an error.
func (r *Registry) ByCapability(name string) []llm.Provider {
	canonical := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := capabilityAliases[canonical]; ok {
		canonical = alias
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []llm.Provider
	for _, id := range r.order {
		p := r.providers[id]
		if p.Capabilities().Supports(canonical) {
			out = append(out, p)
		}
	}
	return out
}

// Unregister removes the provider with the given id, reporting whether it
// was found. With dispose, providers implementing io.Closer are closed
// and the teardown is awaited; close failures are logged, not returned.
func (r *Registry) Unregister(id string, dispose bool) bool {
	r.mu.Lock()
	p, found := r.providers[id]
	if found {
		delete(r.providers, id)
		for i, oid := range r.order {
			if oid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if found && dispose {
		r.dispose(p)
	}
	return found
}

// Clear removes all providers, optionally disposing each one.
func (r *Registry) Clear(dispose bool) {
	r.mu.Lock()
	removed := make([]llm.Provider, 0, len(r.order))
	for _, id := range r.order {
		removed = append(removed, r.providers[id])
	}
	r.providers = make(map[string]llm.Provider)
	r.order = nil
	r.mu.Unlock()

	if dispose {
		for _, p := range removed {
			r.dispose(p)
		}
	}
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (r *Registry) dispose(p llm.Provider) {
	closer, ok := p.(llm.Disposer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		r.logger.Error("provider teardown failed", "id", p.ID(), "error", err)
	}
}

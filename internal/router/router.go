// Package router resolves the provider for a request, either by explicit
// id or by matching the detected intent against registered capabilities.
package router

import (
	"log/slog"
	"strings"

	"github.com/harborml/skiff/internal/intent"
	"github.com/harborml/skiff/internal/llm"
	"github.com/harborml/skiff/internal/registry"
)

// Router composes the intent detector and the provider registry.
// Routing is synchronous and non-blocking; it imposes no timeouts.
type Router struct {
	detector *intent.Detector
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a router over the given detector and registry.
func New(detector *intent.Detector, reg *registry.Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{detector: detector, registry: reg, logger: logger}
}

// Route resolves the provider for the request.
//
// With a non-empty explicitID the registry is consulted directly; an
// unknown id fails with PROVIDER_NOT_FOUND, the message enumerating all
// registered ids in registration order. Otherwise the request's intent is
// detected and matched by capability; no match fails with
// NO_PROVIDER_WITH_CAPABILITY.
//
// When several providers share the capability, the first in registration
// order wins. This is a deliberately simple selection strategy and an
// extension point, not a load-balancing guarantee.
func (r *Router) Route(explicitID string, req llm.Request) (llm.Provider, error) {
	if explicitID != "" {
		p := r.registry.Get(explicitID)
		if p == nil {
			return nil, &llm.Error{
				Code:     llm.CodeProviderNotFound,
				Provider: explicitID,
				Message:  "provider not found; registered: " + r.registeredList(),
			}
		}
		return p, nil
	}

	detected, err := r.detector.Detect(req)
	if err != nil {
		return nil, err
	}

	candidates := r.registry.ByCapability(detected.Capability)
	if len(candidates) == 0 {
		return nil, llm.Errf(llm.CodeNoProviderWithCapability,
			"no provider supports %q (intent %s, confidence %.2f); registered: %s",
			detected.Capability, detected.Type, detected.Confidence, r.registeredList())
	}

	selected := candidates[0]
	r.logger.Debug("routed request",
		"intent", detected.Type,
		"capability", detected.Capability,
		"confidence", detected.Confidence,
		"provider", selected.ID(),
		"candidates", len(candidates))
	return selected, nil
}

func (r *Router) registeredList() string {
	ids := r.registry.IDs()
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}

// Package health provides bounded-timeout liveness probing of providers
// with cached results.
//
// Probe failures are never surfaced as errors to the caller's control
// flow; every outcome is captured into a HealthResult and cached per
// provider id, overwriting any prior result.
package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/harborml/skiff/internal/llm"
)

// DefaultTimeout bounds a probe when the checker is created with a
// non-positive timeout.
const DefaultTimeout = 5 * time.Second

// Status is the cached liveness state of a provider.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// HealthResult is the outcome of one probe.
type HealthResult struct {
	ProviderID   string
	IsHealthy    bool
	Status       Status
	ErrorMessage string
	ErrorCode    llm.Code
	Duration     time.Duration
	CheckedAt    time.Time
}

// Checker probes providers and caches one result per provider id.
// Safe for concurrent use; checks of different providers do not block
// each other.
type Checker struct {
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	results map[string]HealthResult
}

// NewChecker creates a checker with the given probe timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewChecker(timeout time.Duration, logger *slog.Logger) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		timeout: timeout,
		logger:  logger,
		results: make(map[string]HealthResult),
	}
}

// Check probes the provider under the checker's timeout and caches the
// result. Providers implementing llm.ModelLister are probed through the
// model listing, a stronger signal than a bare liveness ping.
//
// Checking a provider with an empty id fails fast rather than silently
// caching under a blank key.
func (c *Checker) Check(ctx context.Context, p llm.Provider) (HealthResult, error) {
	if p == nil {
		return HealthResult{}, errors.New("provider cannot be nil")
	}
	id := p.ID()
	if id == "" {
		return HealthResult{}, errors.New("provider id cannot be empty")
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	// The timeout is hard: a probe that ignores its context must not
	// block the caller past the deadline.
	type outcome struct {
		healthy bool
		err     error
	}
	ch := make(chan outcome, 1)
	go func() {
		healthy, err := c.probe(probeCtx, p)
		ch <- outcome{healthy: healthy, err: err}
	}()

	var healthy bool
	var err error
	select {
	case out := <-ch:
		healthy, err = out.healthy, out.err
	case <-probeCtx.Done():
		err = probeCtx.Err()
	}
	duration := time.Since(start)

	result := HealthResult{
		ProviderID: id,
		Duration:   duration,
		CheckedAt:  start,
	}

	switch {
	case err == nil && healthy:
		result.IsHealthy = true
		result.Status = StatusHealthy

	case err == nil:
		result.Status = StatusUnhealthy
		result.ErrorCode = llm.CodeHealthCheckFailed
		result.ErrorMessage = "provider reported unhealthy"

	case errors.Is(err, context.DeadlineExceeded):
		result.Status = StatusUnhealthy
		result.ErrorCode = llm.CodeHealthCheckTimeout
		result.ErrorMessage = err.Error()
		if result.Duration < c.timeout {
			result.Duration = c.timeout
		}

	case errors.Is(err, llm.ErrAuthentication) || llm.CodeOf(err) == llm.CodeAuthError:
		result.Status = StatusUnhealthy
		result.ErrorCode = llm.CodeAuthError
		result.ErrorMessage = err.Error()

	default:
		result.Status = StatusUnhealthy
		result.ErrorCode = llm.CodeTransientError
		result.ErrorMessage = err.Error()
	}

	c.mu.Lock()
	c.results[id] = result
	c.mu.Unlock()

	c.logger.Debug("health check completed",
		"provider", id,
		"healthy", result.IsHealthy,
		"code", result.ErrorCode,
		"duration", result.Duration)
	return result, nil
}

// probe runs the provider's liveness check, preferring the model-fetch
// oracle when the provider exposes one.
func (c *Checker) probe(ctx context.Context, p llm.Provider) (bool, error) {
	if lister, ok := p.(llm.ModelLister); ok {
		if _, err := lister.ListModels(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return p.HealthCheck(ctx)
}

// IsHealthy returns the cached liveness of the provider id, or nil when
// the id was never checked.
func (c *Checker) IsHealthy(id string) *bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[id]
	if !ok {
		return nil
	}
	healthy := result.IsHealthy
	return &healthy
}

// Status returns the cached status of the provider id, StatusUnknown when
// never checked.
func (c *Checker) Status(id string) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[id]
	if !ok {
		return StatusUnknown
	}
	return result.Status
}

// Result returns the cached result for the provider id, if any.
func (c *Checker) Result(id string) (HealthResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[id]
	return result, ok
}

// Results returns a copy of all cached results, keyed by provider id.
func (c *Checker) Results() map[string]HealthResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]HealthResult, len(c.results))
	for id, r := range c.results {
		out[id] = r
	}
	return out
}

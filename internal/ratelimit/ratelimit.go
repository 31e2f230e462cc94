// Package ratelimit provides per-provider token-bucket admission control.
//
// Each provider id maps to its own bucket; acquisitions against different
// providers never block each other. A provider with no configured bucket
// is unbounded. The limiter delays admission; it never retries.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates a single provider's request admission. Acquire blocks the
// caller until a token is available or ctx is cancelled.
//
// Callers may install a fully custom implementation per provider via
// Table.Set.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// TokenBucket is the default Limiter: a token bucket holding up to
// maxRequests tokens refilled continuously over the window. The bucket
// starts full, so the first maxRequests acquisitions complete without
// suspension; the next waits window/maxRequests from the last refill.
type TokenBucket struct {
	lim *rate.Limiter
}

// NewTokenBucket creates a bucket admitting maxRequests per window.
func NewTokenBucket(maxRequests int, window time.Duration) (*TokenBucket, error) {
	if maxRequests <= 0 {
		return nil, errors.New("maxRequests must be positive")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	limit := rate.Limit(float64(maxRequests) / window.Seconds())
	return &TokenBucket{lim: rate.NewLimiter(limit, maxRequests)}, nil
}

// Acquire consumes one token, suspending the caller until one is
// available. It returns ctx.Err() if the context is cancelled first.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	return b.lim.Wait(ctx)
}

// Tokens reports the tokens currently available, for introspection.
// The value is clamped to [0, maxRequests] by the bucket arithmetic.
func (b *TokenBucket) Tokens() float64 {
	return b.lim.Tokens()
}

// Table holds the per-provider limiters. The zero value is not usable;
// create one with NewTable.
type Table struct {
	mu       sync.RWMutex
	limiters map[string]Limiter
}

// NewTable creates an empty limiter table.
func NewTable() *Table {
	return &Table{limiters: make(map[string]Limiter)}
}

// Configure installs a token bucket for the provider id, replacing any
// previous limiter.
func (t *Table) Configure(providerID string, maxRequests int, window time.Duration) error {
	bucket, err := NewTokenBucket(maxRequests, window)
	if err != nil {
		return err
	}
	t.Set(providerID, bucket)
	return nil
}

// Set installs a custom limiter for the provider id.
func (t *Table) Set(providerID string, l Limiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limiters[providerID] = l
}

// Get returns the limiter for the provider id, or nil when the provider
// is unconfigured (unbounded).
func (t *Table) Get(providerID string) Limiter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.limiters[providerID]
}

// Acquire gates a request against the provider's limiter. Providers
// without a limiter are admitted immediately.
func (t *Table) Acquire(ctx context.Context, providerID string) error {
	l := t.Get(providerID)
	if l == nil {
		return nil
	}
	return l.Acquire(ctx)
}

// Package ratelimit is the per-credential admission controller: a fixed
// 60-second window counter in the shared store.
package ratelimit

import (
	"context"
	"time"

	"eventpipeline/internal/kv"
)

const (
	keyPrefix = "rate:"
	// Window is the fixed rate-limit window length.
	Window = 60 * time.Second
)

// Limiter admits or rejects requests per credential. Denied requests still
// count against the window (fixed-window policy, not a token bucket).
type Limiter struct {
	store kv.Store
	limit int64
}

// NewLimiter returns a Limiter allowing limit requests per credential per
// window.
func NewLimiter(store kv.Store, limit int64) *Limiter {
	return &Limiter{store: store, limit: limit}
}

// Allow increments the window counter for credential and reports whether
// the request is within the limit. The expiry is set only when the counter
// is created; the gap between INCR and EXPIRE on the first request of a
// window is tolerated (worst case the window runs marginally long).
func (l *Limiter) Allow(ctx context.Context, credential string) (bool, error) {
	key := keyPrefix + credential

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := l.store.Expire(ctx, key, Window); err != nil {
			return false, err
		}
	}

	return count <= l.limit, nil
}

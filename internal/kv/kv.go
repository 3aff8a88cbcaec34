// Package kv defines the narrow key-value surface shared by the rate
// limiter, the idempotency guard, and the hand-off queue. Everything above
// it is agnostic to the concrete store; the Redis implementation is the
// production one and Memory backs unit tests.
package kv

import (
	"context"
	"time"
)

// Store is the set of atomic single-key operations the pipeline needs.
// No cross-key transactions are assumed anywhere.
type Store interface {
	// Incr atomically increments the integer at key (creating it at 0)
	// and returns the post-increment value.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a TTL on key. A no-op if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// SetNX sets key to value only if it does not exist, returning true
	// when the set happened. ttl of zero means no expiry.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// LPush appends value to the head of the list at key.
	LPush(ctx context.Context, key, value string) error

	// RPopCount removes and returns up to count values from the tail of
	// the list at key. Returns an empty slice, not an error, when the
	// list is empty. Never blocks.
	RPopCount(ctx context.Context, key string, count int) ([]string, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

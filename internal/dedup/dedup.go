// Package dedup implements the fast-path half of the idempotency contract:
// a per-(client, event) marker in the shared store, set exactly once. The
// durable half is the unique constraint on the events table; both must
// agree for the property to hold across restarts of the store.
package dedup

import (
	"context"
	"fmt"

	"eventpipeline/internal/kv"
)

const keyPrefix = "idemp:"

// Guard answers "is this the first time I've seen this key" exactly once
// per key, for the lifetime of the marker.
type Guard struct {
	store kv.Store
}

// NewGuard returns a Guard backed by the given store.
func NewGuard(store kv.Store) *Guard {
	return &Guard{store: store}
}

// Key builds the idempotency key for a (client, event) pair.
func Key(clientID int64, eventID string) string {
	return fmt.Sprintf("%d:%s", clientID, eventID)
}

// MarkIfAbsent atomically records the marker for key and reports whether
// this call created it. A single SETNX, so two concurrent requests for the
// same key cannot both see true. Markers have no expiry.
func (g *Guard) MarkIfAbsent(ctx context.Context, key string) (bool, error) {
	return g.store.SetNX(ctx, keyPrefix+key, "1", 0)
}

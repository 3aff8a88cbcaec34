// Package queue is the durable hand-off between the ingestion endpoint and
// the batch worker: a single Redis list of JSON-serialized envelopes,
// pushed at the head and popped in batches from the tail (FIFO).
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"eventpipeline/internal/kv"
	"eventpipeline/internal/models"
)

const defaultKey = "event_queue"

// Queue serializes envelopes onto a named list in the shared store.
// Multiple producers and consumers may share one Queue; atomicity is
// provided by the store, not by client-side locking.
type Queue struct {
	store kv.Store
	key   string
}

// New returns a Queue on the default list key.
func New(store kv.Store) *Queue {
	return &Queue{store: store, key: defaultKey}
}

// Push appends one envelope to the queue. The push is synchronous: when it
// returns nil the envelope is in the store and the caller may acknowledge
// acceptance.
func (q *Queue) Push(ctx context.Context, env models.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return q.store.LPush(ctx, q.key, string(b))
}

// PopBatch removes up to max envelopes in FIFO order. It returns fewer
// than max, without blocking, when the queue holds fewer items. Once
// popped an envelope is gone from the queue; there is no redelivery.
//
// An entry that fails to deserialize is returned as a zero-valued envelope
// alongside its error via the second return so the caller can log and drop
// it without losing its siblings.
func (q *Queue) PopBatch(ctx context.Context, max int) ([]models.Envelope, []error, error) {
	raw, err := q.store.RPopCount(ctx, q.key, max)
	if err != nil {
		return nil, nil, err
	}

	envs := make([]models.Envelope, 0, len(raw))
	var dropped []error
	for _, item := range raw {
		var env models.Envelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			dropped = append(dropped, fmt.Errorf("unmarshal envelope %q: %w", item, err))
			continue
		}
		envs = append(envs, env)
	}
	return envs, dropped, nil
}

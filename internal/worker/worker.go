// Package worker drains the hand-off queue in bounded batches and persists
// the results. It runs as its own process, decoupled in time and failure
// domain from request handling.
package worker

import (
	"context"
	"log/slog"
	"time"

	"eventpipeline/internal/models"
	"eventpipeline/internal/queue"
)

// BatchInserter persists a batch of event records in one transaction.
type BatchInserter interface {
	InsertEventBatch(ctx context.Context, records []models.EventRecord) error
}

// Worker is the long-lived drain loop. One Worker per process; running
// several processes against the same queue is safe but interleaves
// persistence order.
type Worker struct {
	queue        *queue.Queue
	store        BatchInserter
	batchSize    int
	idleInterval time.Duration
	logger       *slog.Logger

	now func() time.Time // clock override for tests
}

// New returns a Worker that drains up to batchSize envelopes per pop and
// sleeps idleInterval when the queue is empty.
func New(q *queue.Queue, store BatchInserter, batchSize int, idleInterval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		queue:        q,
		store:        store,
		batchSize:    batchSize,
		idleInterval: idleInterval,
		logger:       logger,
		now:          time.Now,
	}
}

// Run loops until ctx is cancelled. An in-flight batch always finishes
// before Run returns; cancellation is only observed between batches, so
// envelopes already popped are never abandoned by shutdown itself.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", "batch_size", w.batchSize, "idle_interval", w.idleInterval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return
		default:
		}

		drained, err := w.DrainOnce(ctx)
		if err != nil {
			w.logger.Error("queue pop failed", "error", err)
			drained = 0
		}

		if drained == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(w.idleInterval):
			}
		}
	}
}

// DrainOnce pops one batch, builds records, and persists them in one
// transaction. It returns the number of envelopes popped (not persisted),
// so an empty queue reports 0 and the caller can idle.
//
// Per-envelope failures (bad timestamp, undecodable entry) drop that
// envelope with a log line; siblings in the batch are unaffected. A failed
// transaction loses the whole batch: there is no retry queue, and the loss
// is logged rather than masked.
func (w *Worker) DrainOnce(ctx context.Context) (int, error) {
	envs, malformed, err := w.queue.PopBatch(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for _, m := range malformed {
		w.logger.Warn("dropping undecodable queue entry", "error", m)
	}

	popped := len(envs) + len(malformed)
	if popped == 0 {
		return 0, nil
	}

	records := make([]models.EventRecord, 0, len(envs))
	for _, env := range envs {
		rec, err := w.buildRecord(env)
		if err != nil {
			w.logger.Warn("dropping invalid envelope",
				"client_id", env.ClientID, "event_id", env.EventID, "error", err)
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return popped, nil
	}

	if err := w.store.InsertEventBatch(ctx, records); err != nil {
		// The batch is lost; envelopes were already popped.
		w.logger.Error("batch insert failed, batch lost",
			"batch_size", len(records), "error", err)
		return popped, nil
	}

	w.logger.Info("batch persisted", "count", len(records))
	return popped, nil
}

// buildRecord turns one envelope into a persisted-record candidate.
// Latency may be negative under clock skew; it is stored as-is.
func (w *Worker) buildRecord(env models.Envelope) (models.EventRecord, error) {
	eventTS, err := time.Parse(time.RFC3339, env.Timestamp)
	if err != nil {
		return models.EventRecord{}, err
	}

	processedAt := w.now().UTC()

	return models.EventRecord{
		ClientID:            env.ClientID,
		EventID:             env.EventID,
		EventType:           env.EventType,
		EventTimestamp:      eventTS.UTC(),
		ProcessedAt:         processedAt,
		Payload:             env.Payload,
		Status:              models.StatusProcessed,
		ProcessingLatencyMS: processedAt.Sub(eventTS).Milliseconds(),
	}, nil
}

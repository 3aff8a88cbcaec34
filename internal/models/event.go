package models

import "time"

// EventIngestRequest is the POST /events payload.
// All fields are required; timestamp must be RFC3339.
type EventIngestRequest struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp string                 `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// Envelope is the in-flight representation of one event between the
// ingestion endpoint and the batch worker. It is serialized to JSON on the
// queue and discarded after persistence (or permanent failure).
type Envelope struct {
	ClientID  int64                  `json:"client_id"`
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp string                 `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// Event statuses written by the batch worker.
const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// EventRecord is the persisted form of an event. Created only by the batch
// worker; never mutated after insert. (client_id, event_id) is unique.
type EventRecord struct {
	ClientID            int64
	EventID             string
	EventType           string
	EventTimestamp      time.Time
	ProcessedAt         time.Time
	Payload             map[string]interface{}
	Status              string
	ProcessingLatencyMS int64
}

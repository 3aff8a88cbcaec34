package models

import "time"

// Client is a registered producer of events. Credentials (api_key) are
// resolved against this table on every ingestion request.
type Client struct {
	ID        int64
	Name      string
	APIKey    string
	IsActive  bool
	CreatedAt time.Time
}

// AuditLog records request metadata for every API call, regardless of
// outcome. Written by the audit middleware as a pure side channel.
type AuditLog struct {
	ClientID       *int64
	RequestID      string
	Endpoint       string
	Method         string
	StatusCode     int
	ResponseTimeMS int64
}

// GroupCount is one row of GET /analytics/group.
type GroupCount struct {
	ClientID  int64  `json:"client_id"`
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}

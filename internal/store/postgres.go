package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventpipeline/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the durable persistence layer: clients, events, audit.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// ClientByAPIKey resolves a credential to an active client.
// Returns (nil, nil) when no active client carries the key.
func (p *PostgresStore) ClientByAPIKey(ctx context.Context, apiKey string) (*models.Client, error) {
	var c models.Client
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, api_key, is_active, created_at
		FROM clients
		WHERE api_key = $1 AND is_active
	`, apiKey).Scan(&c.ID, &c.Name, &c.APIKey, &c.IsActive, &c.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertEventBatch persists all records in one transaction. Any failure
// (including a uniqueness violation on one row) aborts the whole batch;
// the caller decides what to do with the loss.
func (p *PostgresStore) InsertEventBatch(ctx context.Context, records []models.EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		payload := r.Payload
		if payload == nil {
			payload = map[string]interface{}{}
		}
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload for event %q: %w", r.EventID, err)
		}

		batch.Queue(`
			INSERT INTO events(
				client_id, event_id, event_type, event_timestamp,
				processed_at, payload, status, processing_latency_ms
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, r.ClientID, r.EventID, r.EventType, r.EventTimestamp,
			r.ProcessedAt, payloadJSON, r.Status, r.ProcessingLatencyMS)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CountEvents counts events of eventType, optionally bounded to
// [start, end] on event_timestamp (both bounds inclusive, both optional).
func (p *PostgresStore) CountEvents(ctx context.Context, eventType string, start, end *time.Time) (int64, error) {
	q := `SELECT COUNT(*) FROM events WHERE event_type = $1`
	args := []any{eventType}

	if start != nil {
		args = append(args, *start)
		q += fmt.Sprintf(" AND event_timestamp >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		q += fmt.Sprintf(" AND event_timestamp <= $%d", len(args))
	}

	var count int64
	err := p.pool.QueryRow(ctx, q, args...).Scan(&count)
	return count, err
}

// GroupByClientAndType returns event counts grouped by (client_id,
// event_type) over the whole table. No pagination; see handler docs.
func (p *PostgresStore) GroupByClientAndType(ctx context.Context) ([]models.GroupCount, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT client_id, event_type, COUNT(*)
		FROM events
		GROUP BY client_id, event_type
		ORDER BY client_id, event_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []models.GroupCount{}
	for rows.Next() {
		var g models.GroupCount
		if err := rows.Scan(&g.ClientID, &g.EventType, &g.Count); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// InsertAuditLog records one request-audit row.
func (p *PostgresStore) InsertAuditLog(ctx context.Context, entry models.AuditLog) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO audit_logs(client_id, request_id, endpoint, method, status_code, response_time_ms)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ClientID, entry.RequestID, entry.Endpoint, entry.Method,
		entry.StatusCode, entry.ResponseTimeMS)
	return err
}

// Package audit records request metadata (endpoint, method, status,
// latency) for every API call. It is a pure side channel: failures are
// logged and never affect the response.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eventpipeline/internal/auth"
	"eventpipeline/internal/models"
)

// Recorder persists one audit row.
type Recorder interface {
	InsertAuditLog(ctx context.Context, entry models.AuditLog) error
}

// Middleware wraps every request and writes one audit record after the
// response, regardless of outcome. The write uses a short background
// context so a slow audit store cannot hold the request open.
func Middleware(rec Recorder, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := models.AuditLog{
			RequestID:      uuid.New().String(),
			Endpoint:       c.Request.URL.Path,
			Method:         c.Request.Method,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMS: time.Since(start).Milliseconds(),
		}
		if client := auth.Client(c); client != nil {
			entry.ClientID = &client.ID
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := rec.InsertAuditLog(ctx, entry); err != nil {
			logger.Warn("audit write failed",
				"endpoint", entry.Endpoint, "error", err)
		}
	}
}

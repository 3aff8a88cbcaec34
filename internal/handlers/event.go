package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eventpipeline/internal/auth"
	"eventpipeline/internal/dedup"
	"eventpipeline/internal/models"
	"eventpipeline/internal/queue"
	"eventpipeline/internal/ratelimit"
)

// RegisterEventRoutes registers the ingestion-path endpoint.
//
// POST /events
// - Requires X-API-Key (client context)
// - 202 means "durably queued", not "processed": persistence is async
// - Duplicates by (client_id, event_id) are accepted idempotently
func RegisterEventRoutes(r gin.IRoutes, limiter *ratelimit.Limiter, guard *dedup.Guard, q *queue.Queue) {
	r.POST("/events", func(c *gin.Context) {
		client := auth.Client(c)
		if client == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req models.EventIngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		// Required fields per contract.
		if req.EventID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_id required"})
			return
		}
		if req.EventType == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_type required"})
			return
		}
		if _, err := time.Parse(time.RFC3339, req.Timestamp); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
			return
		}

		// Admission control happens before any write.
		allowed, err := limiter.Allow(c.Request.Context(), client.APIKey)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiter unavailable"})
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		first, err := guard.MarkIfAbsent(c.Request.Context(), dedup.Key(client.ID, req.EventID))
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "idempotency store unavailable"})
			return
		}
		if !first {
			// Idempotent success, not an error. Nothing is enqueued.
			c.JSON(http.StatusAccepted, gin.H{"message": "Duplicate event ignored"})
			return
		}

		env := models.Envelope{
			ClientID:  client.ID,
			EventID:   req.EventID,
			EventType: req.EventType,
			Timestamp: req.Timestamp,
			Payload:   req.Payload,
		}
		if err := q.Push(c.Request.Context(), env); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"message": "Event accepted"})
	})
}

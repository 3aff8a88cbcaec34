package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eventpipeline/internal/models"
)

// AnalyticsStore is the read side over persisted events.
type AnalyticsStore interface {
	CountEvents(ctx context.Context, eventType string, start, end *time.Time) (int64, error)
	GroupByClientAndType(ctx context.Context) ([]models.GroupCount, error)
}

// RegisterAnalyticsRoutes registers the serving-path endpoints.
//
// GET /analytics/count?event_type=...&start=...&end=...
// - start/end optional RFC3339 bounds on event_timestamp (inclusive)
//
// GET /analytics/group
// - full-table counts by (client_id, event_type); unbounded result,
//   a candidate for pagination if the table grows large
func RegisterAnalyticsRoutes(r gin.IRoutes, st AnalyticsStore) {
	r.GET("/analytics/count", func(c *gin.Context) {
		eventType := c.Query("event_type")
		if eventType == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_type required"})
			return
		}

		start, err := optionalTime(c.Query("start"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
			return
		}
		end, err := optionalTime(c.Query("end"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
			return
		}

		count, err := st.CountEvents(c.Request.Context(), eventType, start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"count": count})
	})

	r.GET("/analytics/group", func(c *gin.Context) {
		groups, err := st.GroupByClientAndType(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"groups": groups})
	})
}

// optionalTime parses an optional RFC3339 query value, normalized to UTC.
func optionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

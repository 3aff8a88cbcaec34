package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eventpipeline/internal/audit"
	"eventpipeline/internal/auth"
	"eventpipeline/internal/config"
	"eventpipeline/internal/dedup"
	"eventpipeline/internal/handlers"
	"eventpipeline/internal/kv"
	"eventpipeline/internal/queue"
	"eventpipeline/internal/ratelimit"
	"eventpipeline/internal/store"
)

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready
// Authenticated: /events, /analytics/count, /analytics/group
func NewRouter(cfg config.Config, st *store.PostgresStore, shared kv.Store, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Every request gets an audit record, authenticated or not.
	r.Use(audit.Middleware(st, logger))

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Readiness: confirms both backing stores are reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		if err := shared.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Auth group enforces client context via X-API-Key.
	authGroup := r.Group("/")
	authGroup.Use(auth.APIKeyMiddleware(st))

	limiter := ratelimit.NewLimiter(shared, cfg.RateLimit)
	guard := dedup.NewGuard(shared)
	q := queue.New(shared)

	handlers.RegisterEventRoutes(authGroup, limiter, guard, q)
	handlers.RegisterAnalyticsRoutes(authGroup, st)

	return r
}

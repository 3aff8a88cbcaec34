package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"eventpipeline/internal/models"
)

// clientCtxKey is the Gin context key used to store the authenticated client.
const clientCtxKey = "client"

// ClientResolver maps a credential to an active client. Returns (nil, nil)
// for an unknown or inactive credential.
type ClientResolver interface {
	ClientByAPIKey(ctx context.Context, apiKey string) (*models.Client, error)
}

// APIKeyMiddleware resolves X-API-Key against the client registry and puts
// the client on the request context. Unknown, inactive, or missing keys
// get 401; a registry outage gets 500 (caller retries).
func APIKeyMiddleware(resolver ClientResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		client, err := resolver.ClientByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "credential lookup failed"})
			return
		}
		if client == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Set(clientCtxKey, client)
		c.Next()
	}
}

// Client returns the authenticated client from the request context, or nil
// when the request did not pass the middleware.
func Client(c *gin.Context) *models.Client {
	v, _ := c.Get(clientCtxKey)
	client, _ := v.(*models.Client)
	return client
}

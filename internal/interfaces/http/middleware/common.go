package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderWebhookSecret carries the shared secret of the database trigger
const HeaderWebhookSecret = "X-Webhook-Secret"

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDKey)
		if requestID == "" || len(requestID) > MaxRequestIDLength {
			requestID = generateRequestID()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(RequestIDKey, requestID)
		c.Next()
	}
}

func generateRequestID() string {
	return uuid.NewString()
}

// WebhookSecret rejects requests whose X-Webhook-Secret does not match secret.
// An empty secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	expected := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(HeaderWebhookSecret))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			c.AbortWithStatus(http.StatusUnauthorized)
			c.Writer.WriteString("Unauthorized")
			return
		}
		c.Next()
	}
}

// Timeout bounds the request context. Handlers observe it through the
// collaborators they call with c.Request.Context().
func Timeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

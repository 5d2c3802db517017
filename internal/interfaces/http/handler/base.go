package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reconciler/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities. The trigger only reads the
// status code, so every response is a short plain-text line.
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDKey)
}

// Text sends a plain-text response
func (h *BaseHandler) Text(c *gin.Context, statusCode int, message string) {
	c.String(statusCode, message)
}

// OK sends a 200 response
func (h *BaseHandler) OK(c *gin.Context, message string) {
	h.Text(c, http.StatusOK, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Text(c, http.StatusBadRequest, message)
}

package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping() error
}

// SystemHandler serves liveness and build information
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        Pinger
	logger    *zap.Logger
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil.
func NewSystemHandler(name, version string, db Pinger, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		db:        db,
		logger:    logger,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health answers 200 while the database is reachable, 503 otherwise
func (h *SystemHandler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			h.Text(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	h.OK(c, "ok")
}

// GetSystemInfo returns name, version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

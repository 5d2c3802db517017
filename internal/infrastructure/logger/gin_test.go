package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGinMiddleware_LogsWithRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-9")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.POST("/hook", func(c *gin.Context) {
		assert.Equal(t, "req-9", GetRequestID(c.Request.Context()))
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	entries := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
	assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
}

func TestGinMiddleware_ServerErrorLoggedAsError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/fail", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	entries := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, recorded.FilterMessage("Panic recovered").All(), 1)
}

func TestGetGinLogger_Fallback(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}

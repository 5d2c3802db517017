package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reconciler/backend/internal/infrastructure/logger"
	"github.com/reconciler/backend/internal/infrastructure/telemetry"
	"github.com/reconciler/backend/internal/interfaces/http/dto"
	"github.com/reconciler/backend/internal/interfaces/http/handler"
	"github.com/reconciler/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const defaultMaxBodySize = 1 << 20

// Options configures the HTTP engine
type Options struct {
	ServiceName    string
	WebhookSecret  string
	MaxBodySize    int64
	RequestTimeout time.Duration
	TrustedProxies []string
	// Tracing wraps every request in a server span
	Tracing bool
	// Meter records HTTP metrics when non-nil and enabled
	Meter *telemetry.MeterProvider
}

// Handlers are the endpoints mounted by NewEngine
type Handlers struct {
	Webhook *handler.WebhookHandler
	System  *handler.SystemHandler
}

// NewEngine builds the gin engine serving the change-notification receiver.
//
// Routes:
//
//	POST /api/v1/hooks/transactions
//	POST /api/v1/hooks/orders
//	POST /api/v1/hooks/treasury-operations
//	GET  /api/v1/system/info
//	GET  /health
func NewEngine(opts Options, h Handlers, log *zap.Logger) (*gin.Engine, error) {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	if opts.Tracing {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{ServiceName: opts.ServiceName}))
		engine.Use(middleware.TracingAttributeInjector())
		engine.Use(middleware.SpanErrorMarker())
	}
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: opts.Meter,
		Enabled:       opts.Meter != nil,
	}))

	engine.GET("/health", h.System.Health)

	hooks := NewGroup("/hooks",
		middleware.WebhookSecret(opts.WebhookSecret),
		middleware.BodyLimit(opts.MaxBodySize),
		middleware.Timeout(opts.RequestTimeout),
	).
		Hook(dto.TableTransactions, h.Webhook.HandleTransaction).
		Hook(dto.TableOrders, h.Webhook.HandleOrder).
		Hook(dto.TableTreasuryOperations, h.Webhook.HandleTreasuryOperation)
	system := NewGroup("/system").Handle(http.MethodGet, "/info", h.System.GetSystemInfo)

	routes, err := Mount(engine, DefaultAPIVersion, hooks, system)
	if err != nil {
		return nil, err
	}
	for _, r := range routes {
		log.Debug("Route mounted",
			zap.String("method", r.Method),
			zap.String("path", r.Path),
			zap.String("table", r.Table),
		)
	}

	engine.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "not found")
	})
	return engine, nil
}

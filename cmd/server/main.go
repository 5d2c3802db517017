package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reconciler/backend/internal/app"
	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/infrastructure/cache"
	"github.com/reconciler/backend/internal/infrastructure/config"
	"github.com/reconciler/backend/internal/infrastructure/dispatch"
	"github.com/reconciler/backend/internal/infrastructure/logger"
	"github.com/reconciler/backend/internal/infrastructure/persistence"
	"github.com/reconciler/backend/internal/infrastructure/scheduler"
	"github.com/reconciler/backend/internal/infrastructure/telemetry"
	"github.com/reconciler/backend/internal/interfaces/http/handler"
	"github.com/reconciler/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot, bootErr := logger.NewForEnvironment(os.Getenv("RECON_APP_ENV"))
		if bootErr != nil {
			panic("Failed to load configuration: " + err.Error())
		}
		boot.Fatal("Failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting reconciler",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	var metrics *telemetry.ReconcileMetrics
	if meterProvider.IsEnabled() {
		metrics, err = telemetry.NewReconcileMetrics(telemetry.ReconcileMetricsConfig{
			Meter:  meterProvider.Meter("reconciler"),
			Logger: log,
		})
		if err != nil {
			log.Fatal("Failed to create reconcile metrics", zap.Error(err))
		}
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQuery))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		tracingCfg := telemetry.DefaultDBTracingConfig()
		tracingCfg.Enabled = true
		tracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		tracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQuery
		plugin := telemetry.NewDBTracingPlugin(tracingCfg, log)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	if meterProvider.IsEnabled() {
		dbMetrics, err := telemetry.NewDBMetrics(meterProvider.Meter("reconciler/db"), log)
		if err != nil {
			log.Fatal("Failed to create database metrics", zap.Error(err))
		}
		if err := dbMetrics.Register(db.DB); err != nil {
			log.Fatal("Failed to register database metrics", zap.Error(err))
		}
		if sqlDB, err := db.DB.DB(); err == nil {
			dbMetrics.StartPoolStatsCollection(ctx, sqlDB, 15*time.Second)
		}
		defer dbMetrics.Stop()
	}

	// Settlement relay
	var dispatcher ledger.Dispatcher = dispatch.NewRelayClient(cfg.Dispatch, log.Named("dispatch"))
	opts := app.Options{}
	if metrics != nil {
		dispatcher = dispatch.NewObserved(dispatcher, metrics)
		opts.Recorder = metrics
	}
	opts.Dispatcher = dispatcher

	container := app.NewContainer(cfg, db.DB, log, opts)

	// Delivery dedupe
	dedupe, err := cache.NewIdempotencyStoreFactory(cfg.Idempotency, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	if dedupe != nil {
		defer func() {
			if err := dedupe.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
	}

	deps := handler.WebhookDependencies{
		Transfers:  container.Correlator,
		Refunds:    container.Orders,
		Operations: container.Treasury,
		Dedupe:     dedupe,
	}
	if metrics != nil {
		deps.Recorder = metrics
	}
	webhookHandler := handler.NewWebhookHandler(deps, handler.WebhookConfig{
		StrictConfiguration: cfg.Reconcile.StrictConfiguration,
		DedupeTTL:           cfg.Idempotency.TTL,
	}, log.Named("webhook"))

	engine, err := router.NewEngine(router.Options{
		ServiceName:    cfg.Telemetry.ServiceName,
		WebhookSecret:  cfg.Webhook.Secret,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RequestTimeout: cfg.HTTP.WriteTimeout,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Tracing:        tracerProvider.IsEnabled(),
		Meter:          enabledMeter(meterProvider),
	}, router.Handlers{
		Webhook: webhookHandler,
		System:  handler.NewSystemHandler(cfg.App.Name, version, db, log),
	}, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	// Periodic treasury batching
	var trigger *scheduler.BatchTrigger
	if cfg.Scheduler.Enabled {
		triggerCfg := scheduler.DefaultBatchTriggerConfig()
		triggerCfg.CheckInterval = cfg.Scheduler.CheckInterval
		if metrics != nil {
			triggerCfg.Recorder = metrics
		}
		trigger, err = scheduler.NewBatchTrigger(triggerCfg, container.Batcher, log.Named("scheduler"))
		if err != nil {
			log.Fatal("Failed to create batch trigger", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start batch trigger", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Error("Batch trigger did not stop cleanly", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Logger provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func enabledMeter(mp *telemetry.MeterProvider) *telemetry.MeterProvider {
	if mp.IsEnabled() {
		return mp
	}
	return nil
}

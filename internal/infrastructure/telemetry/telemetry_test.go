package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sampleRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&sampleRow{}))
	return db
}

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestProviders_Disabled(t *testing.T) {
	ctx := context.Background()

	tp, err := NewTracerProvider(ctx, Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := NewMeterProvider(ctx, MetricsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("x"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := StartServiceSpan(context.Background(), "correlator", "process",
		WithAttribute(SpanAttrTxHash, "0xTX1"))
	assert.NotEmpty(t, GetTraceID(ctx))
	RecordError(span, errors.New("boom"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "correlator.process", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String(SpanAttrTxHash, "0xTX1"))

	assert.Empty(t, GetTraceID(context.Background()))
}

func TestReconcileMetrics(t *testing.T) {
	_, err := NewReconcileMetrics(ReconcileMetricsConfig{})
	assert.ErrorIs(t, err, ErrMeterNil)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	rm, err := NewReconcileMetrics(ReconcileMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)

	ctx := context.Background()
	rm.RecordDelivery(ctx, "orders", OutcomeProcessed, 10*time.Millisecond)
	rm.RecordDelivery(ctx, "orders", OutcomeProcessed, 20*time.Millisecond)
	rm.RecordStepFailure(ctx, "treasury")
	rm.RecordDispatch(ctx, "mint", nil)
	rm.RecordBatch(ctx, 3, 0)

	var rmData metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rmData))

	sums := map[string]int64{}
	for _, sm := range rmData.ScopeMetrics {
		for _, m := range sm.Metrics {
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["reconcile_deliveries_total"])
	assert.Equal(t, int64(1), sums["reconcile_step_failures_total"])
	assert.Equal(t, int64(1), sums["reconcile_dispatches_total"])
	assert.Equal(t, int64(3), sums["reconcile_batch_released_total"])
	_, parked := sums["reconcile_batch_parked_total"]
	assert.False(t, parked)
}

func TestDBTracingPlugin(t *testing.T) {
	t.Run("disabled registers nothing", func(t *testing.T) {
		db := setupTestDB(t)
		require.NoError(t, NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop()).RegisterOtelGorm(db))
		assert.Nil(t, db.Callback().Query().Get("otel_timing:after_query"))
	})

	t.Run("enabled records statement spans", func(t *testing.T) {
		sr := setupTestTracer(t)
		db := setupTestDB(t)
		cfg := DefaultDBTracingConfig()
		cfg.Enabled = true
		cfg.DBSystem = "sqlite"
		require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).RegisterOtelGorm(db))

		ctx, parent := StartSpan(context.Background(), "test")
		require.NoError(t, db.WithContext(ctx).Create(&sampleRow{Name: "a"}).Error)
		parent.End()

		assert.GreaterOrEqual(t, len(sr.Ended()), 2)
	})
}

func TestDBMetrics(t *testing.T) {
	_, err := NewDBMetrics(nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrMeterNil)

	m, err := NewDBMetrics(noop.NewMeterProvider().Meter("test"), zap.NewNop())
	require.NoError(t, err)
	db := setupTestDB(t)
	require.NoError(t, m.Register(db))
	require.NoError(t, db.Create(&sampleRow{Name: "a"}).Error)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	m.CollectPoolStats(context.Background(), sqlDB)
	m.Stop()
	m.Stop()
}

func TestOperationOf(t *testing.T) {
	assert.Equal(t, "SELECT", operationOf("select * from orders"))
	assert.Equal(t, "UPDATE", operationOf(`  UPDATE "orders" SET due = 0`))
	assert.Equal(t, "OTHER", operationOf("BEGIN"))
	assert.Equal(t, "OTHER", operationOf(""))
}

type captureProcessor struct {
	mu     sync.Mutex
	bodies []string
}

func (p *captureProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool { return true }

func (p *captureProcessor) OnEmit(_ context.Context, r *sdklog.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodies = append(p.bodies, r.Body().AsString())
	return nil
}

func (p *captureProcessor) Shutdown(context.Context) error   { return nil }
func (p *captureProcessor) ForceFlush(context.Context) error { return nil }

func TestLoggerProvider_Bridge(t *testing.T) {
	t.Run("disabled returns the same logger", func(t *testing.T) {
		lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zap.NewNop())
		require.NoError(t, err)
		assert.False(t, lp.IsEnabled())

		log := zap.NewNop()
		assert.Same(t, log, lp.Bridge(log, zapcore.InfoLevel))
		assert.NoError(t, lp.Shutdown(context.Background()))
	})

	t.Run("exports entries at or above level", func(t *testing.T) {
		proc := &captureProcessor{}
		lp := &LoggerProvider{
			provider: sdklog.NewLoggerProvider(sdklog.WithProcessor(proc)),
			logger:   zap.NewNop(),
			config:   LogsConfig{Enabled: true, ServiceName: "reconciler"},
		}
		require.True(t, lp.IsEnabled())

		log := lp.Bridge(zap.NewNop(), zapcore.InfoLevel)
		log.Debug("dropped")
		log.Info("order settled", zap.Int64("order_id", 42))
		log.With(zap.String("path", "orders")).Warn("refund skipped")

		proc.mu.Lock()
		assert.Equal(t, []string{"order settled", "refund skipped"}, proc.bodies)
		proc.mu.Unlock()
		require.NoError(t, lp.Shutdown(context.Background()))
	})
}

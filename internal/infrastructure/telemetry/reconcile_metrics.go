package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Delivery outcomes
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeNotFound  = "not_found"
	OutcomeFailed    = "failed"
)

// ReconcileMetrics counts what the engine does with each delivery
type ReconcileMetrics struct {
	logger *zap.Logger

	deliveriesTotal   *Counter
	deliveryDuration  *Histogram
	stepFailuresTotal *Counter
	dispatchesTotal   *Counter
	batchReleased     *Counter
	batchParked       *Counter
}

// ReconcileMetricsConfig holds configuration for reconcile metrics.
type ReconcileMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewReconcileMetrics creates the reconcile instruments on cfg.Meter
func NewReconcileMetrics(cfg ReconcileMetricsConfig) (*ReconcileMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rm := &ReconcileMetrics{logger: logger}

	var err error
	rm.deliveriesTotal, err = NewCounter(cfg.Meter,
		"reconcile_deliveries_total",
		"Row-change deliveries handled, by table and outcome",
		"{deliveries}",
	)
	if err != nil {
		return nil, err
	}

	rm.deliveryDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "reconcile_delivery_duration_seconds",
		Description: "Time spent handling one delivery",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	rm.stepFailuresTotal, err = NewCounter(cfg.Meter,
		"reconcile_step_failures_total",
		"Correlation steps that failed, by step",
		"{failures}",
	)
	if err != nil {
		return nil, err
	}

	rm.dispatchesTotal, err = NewCounter(cfg.Meter,
		"reconcile_dispatches_total",
		"Settlement submissions, by kind and result",
		"{dispatches}",
	)
	if err != nil {
		return nil, err
	}

	rm.batchReleased, err = NewCounter(cfg.Meter,
		"reconcile_batch_released_total",
		"Periodic operations released for settlement",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	rm.batchParked, err = NewCounter(cfg.Meter,
		"reconcile_batch_parked_total",
		"Periodic operations parked because no account was linked",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	return rm, nil
}

// RecordDelivery records one handled delivery
func (rm *ReconcileMetrics) RecordDelivery(ctx context.Context, table, outcome string, d time.Duration) {
	rm.deliveriesTotal.Inc(ctx, AttrTable.String(table), AttrOutcome.String(outcome))
	rm.deliveryDuration.RecordDuration(ctx, d, AttrTable.String(table))
}

// RecordStepFailure records a failed correlation step
func (rm *ReconcileMetrics) RecordStepFailure(ctx context.Context, step string) {
	rm.stepFailuresTotal.Inc(ctx, AttrStep.String(step))
}

// RecordDispatch records a settlement submission
func (rm *ReconcileMetrics) RecordDispatch(ctx context.Context, kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	rm.dispatchesTotal.Inc(ctx, AttrKind.String(kind), AttrResult.String(result))
}

// RecordBatch records the outcome of a periodic batching pass
func (rm *ReconcileMetrics) RecordBatch(ctx context.Context, released, parked int64) {
	if released > 0 {
		rm.batchReleased.Add(ctx, released)
	}
	if parked > 0 {
		rm.batchParked.Add(ctx, parked)
	}
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewReconcileMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

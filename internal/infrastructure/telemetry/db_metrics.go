package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetrics records query latency, query errors and connection pool usage
type DBMetrics struct {
	logger *zap.Logger

	queryDuration *Histogram
	queryErrors   *Counter
	poolInUse     *Gauge
	poolIdle      *Gauge

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewDBMetrics creates the database instruments on meter
func NewDBMetrics(meter metric.Meter, logger *zap.Logger) (*DBMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &DBMetrics{logger: logger, stopChan: make(chan struct{})}

	var err error
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database statement duration",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.queryErrors, err = NewCounter(meter, "db_query_errors_total", "Failed database statements", "{errors}"); err != nil {
		return nil, err
	}
	if m.poolInUse, err = NewGauge(meter, "db_pool_connections_in_use", "Connections currently in use", "{connections}"); err != nil {
		return nil, err
	}
	if m.poolIdle, err = NewGauge(meter, "db_pool_connections_idle", "Idle connections", "{connections}"); err != nil {
		return nil, err
	}
	return m, nil
}

// Register hooks the metrics callbacks into db
func (m *DBMetrics) Register(db *gorm.DB) error {
	return registerAround(db, "otel_metrics", markQueryStart, m.afterCallback)
}

func (m *DBMetrics) afterCallback(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	elapsed, ok := queryElapsed(ctx)
	if !ok {
		return
	}
	op := operationOf(db.Statement.SQL.String())
	m.queryDuration.RecordDuration(ctx, elapsed, AttrDBOperation.String(op), AttrDBTable.String(db.Statement.Table))
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		m.queryErrors.Inc(ctx, AttrDBOperation.String(op), AttrDBTable.String(db.Statement.Table))
	}
}

// StartPoolStatsCollection samples sqlDB pool stats every interval until Stop
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context, sqlDB *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopChan:
				return
			case <-ticker.C:
				m.CollectPoolStats(ctx, sqlDB)
			}
		}
	}()
}

// CollectPoolStats records the current pool stats once
func (m *DBMetrics) CollectPoolStats(ctx context.Context, sqlDB *sql.DB) {
	stats := sqlDB.Stats()
	m.poolInUse.Record(ctx, int64(stats.InUse))
	m.poolIdle.Record(ctx, int64(stats.Idle))
}

// Stop stops pool stats collection
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func operationOf(statement string) string {
	statement = strings.TrimSpace(statement)
	if i := strings.IndexByte(statement, ' '); i > 0 {
		statement = statement[:i]
	}
	switch op := strings.ToUpper(statement); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return op
	default:
		return "OTHER"
	}
}

package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultMaxSQLLength bounds the statement text attached to a log entry.
// Batch upserts of interactions and group releases can be long.
const DefaultMaxSQLLength = 2048

// GormLogger routes GORM statements to zap. Entries carry the trace, request
// and delivery of the context, so every statement of one reconciled row can be
// found together. Record-not-found is never logged: repositories report a
// missing row as nil.
type GormLogger struct {
	logger        *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	maxSQLLength  int
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which a statement is logged as slow.
// Zero disables slow statement logging.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowThreshold = threshold
	}
}

// WithMaxSQLLength truncates logged statements to n bytes; n <= 0 keeps them whole
func WithMaxSQLLength(n int) GormLoggerOption {
	return func(l *GormLogger) {
		l.maxSQLLength = n
	}
}

// NewGormLogger creates a GORM logger writing to the "gorm" child of log
func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:        log.Named("gorm"),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
		maxSQLLength:  DefaultMaxSQLLength,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		WithLogger(ctx, l.logger).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		WithLogger(ctx, l.logger).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		WithLogger(ctx, l.logger).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs a failed statement as an error, a slow one as a warning and, at
// Info, every other statement at debug level.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if err != nil && errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold
	switch {
	case err != nil && l.level >= gormlogger.Error:
	case slow && l.level >= gormlogger.Warn:
	case l.level >= gormlogger.Info:
	default:
		return
	}

	sql, rows := fc()
	log := WithLogger(ctx, l.logger).With(
		zap.String("statement", l.truncate(sql)),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)

	switch {
	case err != nil:
		log.Error("SQL statement failed", zap.Error(err))
	case slow:
		log.Warn("Slow SQL statement", zap.Duration("threshold", l.slowThreshold))
	default:
		log.Debug("SQL statement")
	}
}

func (l *GormLogger) truncate(sql string) string {
	if l.maxSQLLength <= 0 || len(sql) <= l.maxSQLLength {
		return sql
	}
	return sql[:l.maxSQLLength] + "...(truncated)"
}

// MapGormLogLevel maps a log level name to a GORM log level. Unknown names
// select Warn, so slow statements and failures are still reported.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

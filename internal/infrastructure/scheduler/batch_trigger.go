package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	treasuryapp "github.com/reconciler/backend/internal/application/treasury"
	"go.uber.org/zap"
)

// BatchRunner releases due periodic treasury batches
type BatchRunner interface {
	RunDue(ctx context.Context, now time.Time) (treasuryapp.BatchResult, error)
}

// BatchRecorder observes completed passes
type BatchRecorder interface {
	RecordBatch(ctx context.Context, released, parked int64)
}

// BatchTriggerConfig holds configuration for the batch trigger
type BatchTriggerConfig struct {
	// CheckInterval is how often due treasuries are looked up
	CheckInterval time.Duration
	// RunTimeout bounds a single pass. Zero means no bound.
	RunTimeout time.Duration
	// Recorder is optional
	Recorder BatchRecorder
}

// DefaultBatchTriggerConfig returns default batch trigger configuration
func DefaultBatchTriggerConfig() BatchTriggerConfig {
	return BatchTriggerConfig{
		CheckInterval: time.Minute,
		RunTimeout:    5 * time.Minute,
	}
}

// BatchTrigger runs the periodic batcher on a fixed tick. Passes never
// overlap: a tick that fires while a pass is still running is skipped.
type BatchTrigger struct {
	config BatchTriggerConfig
	runner BatchRunner
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	passMu    sync.Mutex
}

// NewBatchTrigger creates a new batch trigger
func NewBatchTrigger(config BatchTriggerConfig, runner BatchRunner, logger *zap.Logger) (*BatchTrigger, error) {
	if config.CheckInterval <= 0 {
		return nil, fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	if runner == nil {
		return nil, fmt.Errorf("%w: batch runner is required", ErrInvalidConfig)
	}
	return &BatchTrigger{
		config: config,
		runner: runner,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start starts the trigger loop
func (b *BatchTrigger) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.isRunning {
		b.mu.Unlock()
		return nil
	}
	b.isRunning = true
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.wg.Add(1)
	go b.runLoop(ctx)

	b.logger.Info("Batch trigger started",
		zap.Duration("check_interval", b.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger and waits for an in-flight pass to finish
func (b *BatchTrigger) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.isRunning {
		b.mu.Unlock()
		return nil
	}
	b.isRunning = false
	b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Batch trigger stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Batch trigger stop timed out")
		return ctx.Err()
	}
}

func (b *BatchTrigger) runLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

func (b *BatchTrigger) tick(ctx context.Context) {
	if !b.passMu.TryLock() {
		b.logger.Debug("Previous batch pass still running, skipping tick")
		return
	}
	defer b.passMu.Unlock()

	if _, err := b.pass(ctx); err != nil {
		b.logger.Error("Batch pass failed", zap.Error(err))
	}
}

func (b *BatchTrigger) pass(ctx context.Context) (treasuryapp.BatchResult, error) {
	if b.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.RunTimeout)
		defer cancel()
	}

	result, err := b.runner.RunDue(ctx, b.now())
	if b.config.Recorder != nil {
		b.config.Recorder.RecordBatch(ctx, result.Released, result.Parked)
	}
	if result.TreasuriesDue > 0 {
		b.logger.Info("Batch pass completed",
			zap.Int("treasuries_due", result.TreasuriesDue),
			zap.Int("groups", result.Groups),
			zap.Int64("released", result.Released),
			zap.Int64("parked", result.Parked),
		)
	}
	return result, err
}

package reconcile

import (
	"context"
	"fmt"

	"github.com/reconciler/backend/internal/domain/ledger"
	"go.uber.org/zap"
)

// DefaultPageSize is the number of logs read per backfill page
const DefaultPageSize = 100

// EventApplier applies the ledger part of correlation to one stored event
type EventApplier interface {
	Backfill(ctx context.Context, ev ledger.TransferEvent) (bool, error)
}

// BackfillResult summarizes a backfill run
type BackfillResult struct {
	Read    int
	Applied int
	Skipped int
	Failed  int
}

// Backfiller replays the stored event log of one contract through the
// correlator, page by page, in created_at order.
type Backfiller struct {
	logs     ledger.LogRepository
	applier  EventApplier
	pageSize int
	logger   *zap.Logger
}

// NewBackfiller creates a new Backfiller. A non-positive pageSize selects
// DefaultPageSize.
func NewBackfiller(logs ledger.LogRepository, applier EventApplier, pageSize int, logger *zap.Logger) *Backfiller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Backfiller{
		logs:     logs,
		applier:  applier,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Run replays every log of contract on chainID. Failing records are logged and
// skipped; only read failures and cancellation abort the run.
func (b *Backfiller) Run(ctx context.Context, chainID, contract string) (BackfillResult, error) {
	var result BackfillResult

	total, err := b.logs.CountLogs(ctx, chainID, contract)
	if err != nil {
		return result, fmt.Errorf("count logs: %w", err)
	}
	b.logger.Info("Starting backfill",
		zap.String("chain_id", chainID),
		zap.String("contract", contract),
		zap.Int64("total", total),
		zap.Int("page_size", b.pageSize))

	for offset := 0; ; offset += b.pageSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := b.logs.ReadLogs(ctx, chainID, contract, b.pageSize, offset)
		if err != nil {
			return result, fmt.Errorf("read logs at offset %d: %w", offset, err)
		}
		b.logger.Info("Processing logs",
			zap.Int("from", offset),
			zap.Int("until", offset+len(page)-1))

		for i := range page {
			result.Read++
			applied, err := b.applier.Backfill(ctx, page[i].Event(contract))
			switch {
			case err != nil:
				result.Failed++
				b.logger.Error("Backfill record failed",
					zap.String("event_hash", page[i].Hash),
					zap.Error(err))
			case applied:
				result.Applied++
			default:
				result.Skipped++
			}
		}

		if len(page) < b.pageSize {
			break
		}
	}

	b.logger.Info("Backfill finished",
		zap.Int("read", result.Read),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

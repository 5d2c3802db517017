package treasury

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/reconciler/backend/internal/domain/shared"
	"github.com/reconciler/backend/internal/domain/treasury"
	"go.uber.org/zap"
)

// BatchResult summarizes one batching cycle
type BatchResult struct {
	TreasuriesDue int   `json:"treasuries_due"`
	Groups        int   `json:"groups"`
	Released      int64 `json:"released"`
	Parked        int64 `json:"parked"`
}

// Batcher releases pending-periodic operations of periodic treasuries whose
// schedule slot is due, one group per account and direction.
type Batcher struct {
	treasuries treasury.Repository
	operations treasury.OperationRepository
	logger     *zap.Logger

	mu       sync.Mutex
	lastSlot map[int64]string
}

// NewBatcher creates a new Batcher
func NewBatcher(treasuries treasury.Repository, operations treasury.OperationRepository, logger *zap.Logger) *Batcher {
	return &Batcher{
		treasuries: treasuries,
		operations: operations,
		logger:     logger,
		lastSlot:   make(map[int64]string),
	}
}

// RunDue batches every periodic treasury whose current slot is due and has not
// completed yet in this process. A slot that fails is retried on the next run.
func (b *Batcher) RunDue(ctx context.Context, now time.Time) (BatchResult, error) {
	var result BatchResult

	list, err := b.treasuries.FindByStrategy(ctx, treasury.StrategyPeriodic)
	if err != nil {
		return result, shared.NewPersistenceError(err, "list periodic treasuries")
	}

	var errs []error
	for i := range list {
		t := &list[i]
		if t.Periodic == nil {
			continue
		}
		slot, due := t.Periodic.Slot(now)
		if !due || b.completed(t.ID, slot) {
			continue
		}
		result.TreasuriesDue++

		r, err := b.RunTreasury(ctx, t.ID)
		result.Groups += r.Groups
		result.Released += r.Released
		result.Parked += r.Parked
		if err != nil {
			b.logger.Error("Periodic batch failed",
				zap.Int64("treasury_id", t.ID),
				zap.String("slot", slot),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		b.markCompleted(t.ID, slot)
	}
	return result, errors.Join(errs...)
}

// RunTreasury batches one treasury regardless of its schedule
func (b *Batcher) RunTreasury(ctx context.Context, treasuryID int64) (BatchResult, error) {
	var result BatchResult

	ops, err := b.operations.FindByTreasuryAndStatus(ctx, treasuryID, treasury.OpStatusPendingPeriodic)
	if err != nil {
		return result, shared.NewPersistenceError(err, "list pending-periodic operations of treasury %d", treasuryID)
	}

	var orphans []string
	for _, op := range ops {
		if !op.HasAccount() {
			orphans = append(orphans, op.ID)
		}
	}
	if len(orphans) > 0 {
		parked, err := b.operations.MarkAccountMissing(ctx, orphans)
		if err != nil {
			return result, shared.NewPersistenceError(err, "park operations without account")
		}
		result.Parked = parked
		b.logger.Warn("Parked treasury operations without account",
			zap.Int64("treasury_id", treasuryID),
			zap.Strings("ids", orphans))
	}

	var errs []error
	for _, group := range treasury.GroupOperations(ops) {
		released, err := b.operations.ApplyGroup(ctx, group)
		if err != nil {
			errs = append(errs, shared.NewPersistenceError(err, "release group of %s", group.Representative.ID))
			continue
		}
		result.Groups++
		result.Released += released
		b.logger.Info("Released periodic group",
			zap.Int64("treasury_id", treasuryID),
			zap.String("representative", group.Representative.ID),
			zap.Strings("members", group.MemberIDs()),
			zap.Int64("total_amount", group.Metadata.TotalAmount))
	}
	return result, errors.Join(errs...)
}

func (b *Batcher) completed(treasuryID int64, slot string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSlot[treasuryID] == slot
}

func (b *Batcher) markCompleted(treasuryID int64, slot string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSlot[treasuryID] = slot
}

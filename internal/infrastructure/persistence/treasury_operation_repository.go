package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reconciler/backend/internal/domain/treasury"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrGroupChanged is returned by ApplyGroup when a member left pending-periodic
// between listing and release. The whole group is rolled back.
var ErrGroupChanged = errors.New("treasury operation group changed concurrently")

// GormTreasuryOperationRepository implements treasury.OperationRepository using GORM
type GormTreasuryOperationRepository struct {
	db *gorm.DB
}

// NewGormTreasuryOperationRepository creates a new GormTreasuryOperationRepository
func NewGormTreasuryOperationRepository(db *gorm.DB) *GormTreasuryOperationRepository {
	return &GormTreasuryOperationRepository{db: db}
}

// FindByID finds an operation by ID
func (r *GormTreasuryOperationRepository) FindByID(ctx context.Context, id string) (*treasury.Operation, error) {
	var model models.TreasuryOperationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTreasuryAndStatus lists the operations of a treasury in a status
func (r *GormTreasuryOperationRepository) FindByTreasuryAndStatus(ctx context.Context, treasuryID int64, status treasury.OperationStatus) ([]treasury.Operation, error) {
	var rows []models.TreasuryOperationModel
	if err := r.db.WithContext(ctx).
		Where("treasury_id = ? AND status = ?", treasuryID, string(status)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	ops := make([]treasury.Operation, len(rows))
	for i := range rows {
		ops[i] = *rows[i].ToDomain()
	}
	return ops, nil
}

// AttachTxHash moves pending operations to confirming with the dispatch hash
func (r *GormTreasuryOperationRepository) AttachTxHash(ctx context.Context, ids []string, txHash string) (int64, error) {
	return UpdateByIDs(ctx, r.db, &models.TreasuryOperationModel{}, ids,
		[]string{string(treasury.OpStatusPending)},
		map[string]any{
			"status":  string(treasury.OpStatusConfirming),
			"tx_hash": txHash,
		})
}

// ConfirmByTxHash moves confirming operations with txHash to processed
func (r *GormTreasuryOperationRepository) ConfirmByTxHash(ctx context.Context, txHash string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TreasuryOperationModel{}).
		Where("tx_hash = ? AND status = ?", txHash, string(treasury.OpStatusConfirming)).
		Updates(map[string]any{
			"status":     string(treasury.OpStatusProcessed),
			"updated_at": at,
		})
	return result.RowsAffected, result.Error
}

// ApplyGroup stores the group on its representative and releases every member
// to pending in one transaction
func (r *GormTreasuryOperationRepository) ApplyGroup(ctx context.Context, group treasury.Group) (int64, error) {
	meta, err := treasury.OperationMetadata{
		Strategy: treasury.StrategyPeriodic,
		Periodic: &group.Metadata,
	}.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode group metadata: %w", err)
	}

	ids := group.MemberIDs()
	var released int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := UpdateWhereStatus(ctx, tx, &models.TreasuryOperationModel{}, group.Representative.ID,
			[]string{string(treasury.OpStatusPendingPeriodic)},
			map[string]any{"metadata": datatypes.JSON(meta)})
		if err != nil {
			return err
		}
		if rows != 1 {
			return ErrGroupChanged
		}

		rows, err = UpdateByIDs(ctx, tx, &models.TreasuryOperationModel{}, ids,
			[]string{string(treasury.OpStatusPendingPeriodic)},
			map[string]any{"status": string(treasury.OpStatusPending)})
		if err != nil {
			return err
		}
		if rows != int64(len(ids)) {
			return ErrGroupChanged
		}
		released = rows
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// MarkAccountMissing parks pending-periodic operations without an account
func (r *GormTreasuryOperationRepository) MarkAccountMissing(ctx context.Context, ids []string) (int64, error) {
	return UpdateByIDs(ctx, r.db, &models.TreasuryOperationModel{}, ids,
		[]string{string(treasury.OpStatusPendingPeriodic)},
		map[string]any{"status": string(treasury.OpStatusProcessedAccountMissing)})
}

var _ treasury.OperationRepository = (*GormTreasuryOperationRepository)(nil)

package persistence

import (
	"context"
	"errors"

	"github.com/reconciler/backend/internal/domain/order"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTxHash finds every order carrying a chain tx hash
func (r *GormOrderRepository) FindByTxHash(ctx context.Context, txHash string) ([]order.Order, error) {
	var rows []models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("tx_hash = ?", txHash).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	orders := make([]order.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, nil
}

// Finalize marks an order settled. The refund tie-break is evaluated by the
// database against the stored status so concurrent writers cannot interleave.
func (r *GormOrderRepository) Finalize(ctx context.Context, id int64, description string, target order.Status) (int64, error) {
	target = order.ResolveFinalStatus("", target)
	return UpdateWhereStatus(ctx, r.db, &models.OrderModel{}, id, nil, map[string]any{
		"due":         0,
		"description": description,
		"status": gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END",
			string(order.StatusRefund), string(target)),
	})
}

// AttachTxHash records the dispatch hash and the status it settles into
func (r *GormOrderRepository) AttachTxHash(ctx context.Context, id int64, txHash string, status order.Status) (int64, error) {
	return UpdateWhereStatus(ctx, r.db, &models.OrderModel{}, id, nil, map[string]any{
		"tx_hash": txHash,
		"status":  string(status),
	})
}

var _ order.Repository = (*GormOrderRepository)(nil)

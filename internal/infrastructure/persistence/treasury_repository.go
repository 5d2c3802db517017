package persistence

import (
	"context"
	"errors"

	"github.com/reconciler/backend/internal/domain/treasury"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTreasuryRepository implements treasury.Repository using GORM
type GormTreasuryRepository struct {
	db *gorm.DB
}

// NewGormTreasuryRepository creates a new GormTreasuryRepository
func NewGormTreasuryRepository(db *gorm.DB) *GormTreasuryRepository {
	return &GormTreasuryRepository{db: db}
}

// FindByID finds a treasury and its business by ID
func (r *GormTreasuryRepository) FindByID(ctx context.Context, id int64) (*treasury.Treasury, error) {
	var model models.TreasuryModel
	if err := r.db.WithContext(ctx).
		Preload("Business").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByStrategy lists treasuries using a sync strategy
func (r *GormTreasuryRepository) FindByStrategy(ctx context.Context, strategy treasury.Strategy) ([]treasury.Treasury, error) {
	var rows []models.TreasuryModel
	if err := r.db.WithContext(ctx).
		Preload("Business").
		Where("sync_strategy = ?", string(strategy)).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]treasury.Treasury, 0, len(rows))
	for i := range rows {
		t, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, nil
}

var _ treasury.Repository = (*GormTreasuryRepository)(nil)

package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/reconciler/backend/internal/domain/place"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPlaceRepository implements place.Repository using GORM
type GormPlaceRepository struct {
	db *gorm.DB
}

// NewGormPlaceRepository creates a new GormPlaceRepository
func NewGormPlaceRepository(db *gorm.DB) *GormPlaceRepository {
	return &GormPlaceRepository{db: db}
}

// FindByID finds a place by ID
func (r *GormPlaceRepository) FindByID(ctx context.Context, id int64) (*place.Place, error) {
	var model models.PlaceModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByAccount returns every place listing account among its accounts
func (r *GormPlaceRepository) FindByAccount(ctx context.Context, account string) ([]place.Place, error) {
	q := r.db.WithContext(ctx)
	if isPostgres(r.db) {
		needle, err := json.Marshal([]string{account})
		if err != nil {
			return nil, err
		}
		q = q.Where("accounts @> ?::jsonb", string(needle))
	} else {
		q = q.Where("EXISTS (SELECT 1 FROM json_each(places.accounts) WHERE json_each.value = ?)", account)
	}

	var rows []models.PlaceModel
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	places := make([]place.Place, len(rows))
	for i := range rows {
		places[i] = *rows[i].ToDomain()
	}
	return places, nil
}

var _ place.Repository = (*GormPlaceRepository)(nil)

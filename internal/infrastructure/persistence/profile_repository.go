package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/reconciler/backend/internal/domain/identity"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

var profileUpdateColumns = []string{
	"username", "name", "description", "image", "image_medium", "image_small", "token_id", "place_id", "updated_at",
}

// GormProfileRepository implements identity.Repository using GORM
type GormProfileRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormProfileRepository creates a new GormProfileRepository
func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db, now: time.Now}
}

// FindByAccount finds the profile of an account
func (r *GormProfileRepository) FindByAccount(ctx context.Context, account string) (*identity.Profile, error) {
	var model models.ProfileModel
	if err := r.db.WithContext(ctx).Where("account = ?", account).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert inserts the profile or overwrites the existing one for its account
func (r *GormProfileRepository) Upsert(ctx context.Context, p identity.Profile) error {
	model := r.stamp(p)
	_, err := UpsertByKey(ctx, r.db, model, []string{"account"}, profileUpdateColumns)
	return err
}

// InsertIfAbsent inserts the profile unless the account already has one
func (r *GormProfileRepository) InsertIfAbsent(ctx context.Context, p identity.Profile) (bool, error) {
	rows, err := UpsertByKey(ctx, r.db, r.stamp(p), []string{"account"}, nil)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *GormProfileRepository) stamp(p identity.Profile) *models.ProfileModel {
	model := models.ProfileModelFromDomain(p)
	now := r.now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now
	return model
}

var _ identity.Repository = (*GormProfileRepository)(nil)

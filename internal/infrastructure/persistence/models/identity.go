package models

import (
	"encoding/json"
	"time"

	"github.com/reconciler/backend/internal/domain/identity"
	"github.com/reconciler/backend/internal/domain/place"
	"gorm.io/datatypes"
)

// PlaceModel is the persistence model of a point of sale
type PlaceModel struct {
	ID          int64          `gorm:"primaryKey"`
	CreatedAt   time.Time      `gorm:"not null"`
	BusinessID  int64          `gorm:"not null;index"`
	Slug        string         `gorm:"type:varchar(255);not null"`
	Name        string         `gorm:"type:varchar(255);not null"`
	Accounts    datatypes.JSON `gorm:"type:jsonb"`
	Description *string        `gorm:"type:text"`
	Image       *string        `gorm:"type:text"`
	Hidden      bool           `gorm:"not null;default:false"`
	Archived    bool           `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (PlaceModel) TableName() string {
	return "places"
}

// ToDomain converts the persistence model to a domain Place
func (m *PlaceModel) ToDomain() *place.Place {
	p := &place.Place{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt,
		BusinessID:  m.BusinessID,
		Slug:        m.Slug,
		Name:        m.Name,
		Accounts:    []string{},
		Description: m.Description,
		Image:       m.Image,
		Hidden:      m.Hidden,
		Archived:    m.Archived,
	}
	if len(m.Accounts) > 0 {
		_ = json.Unmarshal(m.Accounts, &p.Accounts)
	}
	return p
}

// ProfileModel is the persistence model of an account profile
type ProfileModel struct {
	Account     string    `gorm:"type:varchar(42);primaryKey"`
	Username    string    `gorm:"type:varchar(255);not null"`
	Name        string    `gorm:"type:varchar(255);not null"`
	Description string    `gorm:"type:text;not null;default:''"`
	Image       string    `gorm:"type:text;not null;default:''"`
	ImageMedium string    `gorm:"type:text;not null;default:''"`
	ImageSmall  string    `gorm:"type:text;not null;default:''"`
	TokenID     *string   `gorm:"type:varchar(78)"`
	PlaceID     *int64    `gorm:""`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProfileModel) TableName() string {
	return "a_profiles"
}

// ToDomain converts the persistence model to a domain Profile
func (m *ProfileModel) ToDomain() *identity.Profile {
	return &identity.Profile{
		Account:     m.Account,
		Username:    m.Username,
		Name:        m.Name,
		Description: m.Description,
		Image:       m.Image,
		ImageMedium: m.ImageMedium,
		ImageSmall:  m.ImageSmall,
		TokenID:     m.TokenID,
		PlaceID:     m.PlaceID,
	}
}

// ProfileModelFromDomain converts a domain Profile to its persistence model
func ProfileModelFromDomain(p identity.Profile) *ProfileModel {
	return &ProfileModel{
		Account:     p.Account,
		Username:    p.Username,
		Name:        p.Name,
		Description: p.Description,
		Image:       p.Image,
		ImageMedium: p.ImageMedium,
		ImageSmall:  p.ImageSmall,
		TokenID:     p.TokenID,
		PlaceID:     p.PlaceID,
	}
}

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/reconciler/backend/internal/domain/treasury"
	"gorm.io/datatypes"
)

// BusinessModel is the part of a business the engine reads
type BusinessModel struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"type:varchar(255);not null"`
}

// TableName returns the table name for GORM
func (BusinessModel) TableName() string {
	return "businesses"
}

// TreasuryModel is the persistence model of a treasury
type TreasuryModel struct {
	ID                      int64          `gorm:"primaryKey"`
	BusinessID              int64          `gorm:"not null;index"`
	CreatedAt               time.Time      `gorm:"not null"`
	Token                   string         `gorm:"type:varchar(42);not null"`
	SyncProvider            string         `gorm:"type:varchar(16);not null"`
	SyncProviderCredentials datatypes.JSON `gorm:"type:jsonb"`
	SyncStrategy            string         `gorm:"type:varchar(16);not null;index"`
	SyncStrategyConfig      datatypes.JSON `gorm:"type:jsonb"`
	SyncCurrencySymbol      string         `gorm:"type:varchar(8);not null;default:''"`
	Business                *BusinessModel `gorm:"foreignKey:BusinessID"`
}

// TableName returns the table name for GORM
func (TreasuryModel) TableName() string {
	return "treasury"
}

// ToDomain converts the persistence model to a domain Treasury
func (m *TreasuryModel) ToDomain() (*treasury.Treasury, error) {
	creds, err := treasury.DecodeCredentials(treasury.SyncProvider(m.SyncProvider), m.SyncProviderCredentials)
	if err != nil {
		return nil, fmt.Errorf("treasury %d credentials: %w", m.ID, err)
	}
	strategy := treasury.Strategy(m.SyncStrategy)
	periodic, err := treasury.DecodeStrategyConfig(strategy, m.SyncStrategyConfig)
	if err != nil {
		return nil, fmt.Errorf("treasury %d strategy config: %w", m.ID, err)
	}

	t := &treasury.Treasury{
		ID:                 m.ID,
		BusinessID:         m.BusinessID,
		CreatedAt:          m.CreatedAt,
		Token:              m.Token,
		SyncProvider:       treasury.SyncProvider(m.SyncProvider),
		Credentials:        creds,
		SyncStrategy:       strategy,
		Periodic:           periodic,
		SyncCurrencySymbol: m.SyncCurrencySymbol,
	}
	if m.Business != nil {
		t.BusinessName = m.Business.Name
	}
	return t, nil
}

// TreasuryOperationModel is the persistence model of a treasury operation
type TreasuryOperationModel struct {
	ID         string         `gorm:"type:varchar(255);primaryKey"`
	TreasuryID int64          `gorm:"not null;index"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
	Direction  string         `gorm:"type:varchar(8);not null"`
	Amount     int64          `gorm:"not null"`
	Status     string         `gorm:"type:varchar(32);not null;index"`
	Message    string         `gorm:"type:text;not null;default:''"`
	Metadata   datatypes.JSON `gorm:"type:jsonb"`
	TxHash     *string        `gorm:"type:varchar(66);index"`
	Account    *string        `gorm:"type:varchar(42)"`
}

// TableName returns the table name for GORM
func (TreasuryOperationModel) TableName() string {
	return "treasury_operations"
}

// ToDomain converts the persistence model to a domain Operation
func (m *TreasuryOperationModel) ToDomain() *treasury.Operation {
	return &treasury.Operation{
		ID:         m.ID,
		TreasuryID: m.TreasuryID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		Direction:  treasury.Direction(m.Direction),
		Amount:     m.Amount,
		Status:     treasury.OperationStatus(m.Status),
		Message:    m.Message,
		Metadata:   json.RawMessage(m.Metadata),
		TxHash:     m.TxHash,
		Account:    m.Account,
	}
}


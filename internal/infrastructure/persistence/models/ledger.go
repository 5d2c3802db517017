package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/reconciler/backend/internal/domain/ledger"
	"gorm.io/datatypes"
)

// TransactionModel is the persistence model of a ledger entry
type TransactionModel struct {
	ID          string    `gorm:"type:varchar(66);primaryKey"`
	Hash        string    `gorm:"type:varchar(66);not null;index"`
	Contract    string    `gorm:"type:varchar(42);not null;default:''"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	From        string    `gorm:"column:from;type:varchar(42);not null;index"`
	To          string    `gorm:"column:to;type:varchar(42);not null;index"`
	Value       string    `gorm:"type:varchar(78);not null"`
	Description string    `gorm:"type:text;not null;default:''"`
	Status      string    `gorm:"type:varchar(16);not null"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "a_transactions"
}

// TransactionModelFromDomain converts a ledger Transaction to its persistence model
func TransactionModelFromDomain(tx ledger.Transaction) *TransactionModel {
	return &TransactionModel{
		ID:          tx.ID,
		Hash:        tx.Hash,
		Contract:    tx.Contract,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
		From:        tx.From,
		To:          tx.To,
		Value:       tx.Value,
		Description: tx.Description,
		Status:      tx.Status,
	}
}

// ToDomain converts the persistence model to a ledger Transaction
func (m *TransactionModel) ToDomain() ledger.Transaction {
	return ledger.Transaction{
		ID:          m.ID,
		Hash:        m.Hash,
		Contract:    m.Contract,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		From:        m.From,
		To:          m.To,
		Value:       m.Value,
		Description: m.Description,
		Status:      m.Status,
	}
}

// InteractionModel is the persistence model of a feed entry
type InteractionModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	TransactionID  string    `gorm:"type:varchar(66);not null"`
	Account        string    `gorm:"type:varchar(42);not null;uniqueIndex:idx_interactions_account_with"`
	With           string    `gorm:"column:with;type:varchar(42);not null;uniqueIndex:idx_interactions_account_with"`
	PlaceID        *int64    `gorm:""`
	NewInteraction bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InteractionModel) TableName() string {
	return "a_interactions"
}

// InteractionModelFromDomain converts a ledger Interaction to its persistence model
func InteractionModelFromDomain(i ledger.Interaction) InteractionModel {
	return InteractionModel{
		ID:             i.ID,
		TransactionID:  i.TransactionID,
		Account:        i.Account,
		With:           i.With,
		PlaceID:        i.PlaceID,
		NewInteraction: i.NewInteraction,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

// LogModel is a row of a t_logs_<chain>_<contract> table. The table name is
// chosen per query.
type LogModel struct {
	Hash      string         `gorm:"type:varchar(66);primaryKey"`
	TxHash    string         `gorm:"type:varchar(66);not null;index"`
	CreatedAt time.Time      `gorm:"not null;index"`
	UpdatedAt time.Time      `gorm:"not null"`
	Nonce     int64          `gorm:"not null;default:0"`
	Sender    string         `gorm:"type:varchar(42);not null"`
	To        string         `gorm:"column:dest;type:varchar(42);not null"`
	Value     string         `gorm:"type:varchar(78);not null"`
	Data      datatypes.JSON `gorm:"type:jsonb"`
	Status    string         `gorm:"type:varchar(16);not null"`
}

// ToDomain converts the persistence model to a ledger Log
func (m *LogModel) ToDomain() ledger.Log {
	l := ledger.Log{
		Hash:      m.Hash,
		TxHash:    m.TxHash,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Nonce:     m.Nonce,
		Sender:    m.Sender,
		To:        m.To,
		Value:     m.Value,
		Status:    m.Status,
	}
	if len(m.Data) > 0 {
		_ = json.Unmarshal(m.Data, &l.Data)
	}
	return l
}

// LogDataModel is a row of a t_logs_data_<chain> table
type LogDataModel struct {
	Hash string            `gorm:"type:varchar(66);primaryKey"`
	Data datatypes.JSONMap `gorm:"type:jsonb"`
}

// ToDomain converts the persistence model to a ledger LogData
func (m *LogDataModel) ToDomain() *ledger.LogData {
	d := &ledger.LogData{Hash: m.Hash}
	if desc, ok := m.Data["description"].(string); ok {
		d.Description = desc
	}
	return d
}

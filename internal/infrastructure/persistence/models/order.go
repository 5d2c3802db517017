package models

import (
	"encoding/json"
	"time"

	"github.com/reconciler/backend/internal/domain/order"
	"gorm.io/datatypes"
)

// OrderModel is the persistence model of a point-of-sale order
type OrderModel struct {
	ID          int64          `gorm:"primaryKey"`
	CreatedAt   time.Time      `gorm:"not null"`
	CompletedAt *time.Time     `gorm:""`
	Total       int64          `gorm:"not null;default:0"`
	Due         int64          `gorm:"not null;default:0"`
	Fees        int64          `gorm:"not null;default:0"`
	PlaceID     int64          `gorm:"not null;index"`
	Items       datatypes.JSON `gorm:"type:jsonb"`
	Status      string         `gorm:"type:varchar(32);not null;index"`
	Description string         `gorm:"type:text;not null;default:''"`
	TxHash      *string        `gorm:"type:varchar(66);index"`
	Type        *string        `gorm:"type:varchar(16)"`
	Account     *string        `gorm:"type:varchar(42)"`
	PayoutID    *int64         `gorm:""`
	Token       *string        `gorm:"type:varchar(42)"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
		Total:       m.Total,
		Due:         m.Due,
		Fees:        m.Fees,
		PlaceID:     m.PlaceID,
		Items:       []order.Item{},
		Status:      order.Status(m.Status),
		Description: m.Description,
		TxHash:      m.TxHash,
		Account:     m.Account,
		PayoutID:    m.PayoutID,
		Token:       m.Token,
	}
	if m.Type != nil {
		t := order.Type(*m.Type)
		o.Type = &t
	}
	if len(m.Items) > 0 {
		// A malformed items document does not block settlement.
		_ = json.Unmarshal(m.Items, &o.Items)
	}
	return o
}

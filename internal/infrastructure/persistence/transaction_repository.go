package persistence

import (
	"context"

	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

var transactionUpdateColumns = []string{
	"hash", "contract", "created_at", "updated_at", "from", "to", "value", "description", "status",
}

// GormTransactionRepository implements ledger.TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Upsert writes the entry, overwriting every column on a repeated event hash
func (r *GormTransactionRepository) Upsert(ctx context.Context, tx ledger.Transaction) error {
	_, err := UpsertByKey(ctx, r.db, models.TransactionModelFromDomain(tx), []string{"id"}, transactionUpdateColumns)
	return err
}

var _ ledger.TransactionRepository = (*GormTransactionRepository)(nil)

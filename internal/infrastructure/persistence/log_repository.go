package persistence

import (
	"context"
	"errors"

	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormLogRepository reads the per-chain log tables. Table names are built by
// ledger.LogsTable and ledger.LogsDataTable, which reject anything that is not
// alphanumeric.
type GormLogRepository struct {
	db *gorm.DB
}

// NewGormLogRepository creates a new GormLogRepository
func NewGormLogRepository(db *gorm.DB) *GormLogRepository {
	return &GormLogRepository{db: db}
}

// ReadLogs returns a page of logs ordered by created_at
func (r *GormLogRepository) ReadLogs(ctx context.Context, chainID, contract string, limit, offset int) ([]ledger.Log, error) {
	table, err := ledger.LogsTable(chainID, contract)
	if err != nil {
		return nil, err
	}

	var rows []models.LogModel
	if err := r.db.WithContext(ctx).
		Table(table).
		Order("created_at ASC, hash ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	logs := make([]ledger.Log, len(rows))
	for i := range rows {
		logs[i] = rows[i].ToDomain()
	}
	return logs, nil
}

// CountLogs returns the number of logs for a chain and contract
func (r *GormLogRepository) CountLogs(ctx context.Context, chainID, contract string) (int64, error) {
	table, err := ledger.LogsTable(chainID, contract)
	if err != nil {
		return 0, err
	}
	var count int64
	err = r.db.WithContext(ctx).Table(table).Count(&count).Error
	return count, err
}

// FindLogData returns the enrichment record for a hash, or nil, nil
func (r *GormLogRepository) FindLogData(ctx context.Context, chainID, hash string) (*ledger.LogData, error) {
	table, err := ledger.LogsDataTable(chainID)
	if err != nil {
		return nil, err
	}

	var model models.LogDataModel
	if err := r.db.WithContext(ctx).Table(table).Where("hash = ?", hash).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ ledger.LogRepository = (*GormLogRepository)(nil)

package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertByKey inserts value or, when a row with the same keyColumns exists,
// overwrites updateColumns. With no updateColumns the conflicting insert is
// dropped. Returns rows affected.
func UpsertByKey(ctx context.Context, db *gorm.DB, value any, keyColumns, updateColumns []string) (int64, error) {
	cols := make([]clause.Column, len(keyColumns))
	for i, c := range keyColumns {
		cols[i] = clause.Column{Name: c}
	}
	onConflict := clause.OnConflict{Columns: cols}
	if len(updateColumns) == 0 {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	}

	result := db.WithContext(ctx).Clauses(onConflict).Create(value)
	return result.RowsAffected, result.Error
}

// UpdateWhereStatus updates the single row of model identified by id, only while
// its status is one of fromStatuses. An empty fromStatuses drops the guard.
// Returns rows affected; zero means the precondition did not hold or the row
// does not exist.
func UpdateWhereStatus[K string | int64](ctx context.Context, db *gorm.DB, model any, id K, fromStatuses []string, updates map[string]any) (int64, error) {
	q := db.WithContext(ctx).Model(model).Where("id = ?", id)
	if len(fromStatuses) > 0 {
		q = q.Where("status IN ?", fromStatuses)
	}
	result := q.Updates(updates)
	return result.RowsAffected, result.Error
}

// UpdateByIDs updates every row of model whose id is in ids, optionally guarded
// by a status precondition. Returns rows affected.
func UpdateByIDs[K string | int64](ctx context.Context, db *gorm.DB, model any, ids []K, fromStatuses []string, updates map[string]any) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := db.WithContext(ctx).Model(model).Where("id IN ?", ids)
	if len(fromStatuses) > 0 {
		q = q.Where("status IN ?", fromStatuses)
	}
	result := q.Updates(updates)
	return result.RowsAffected, result.Error
}

package persistence

import (
	"context"

	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInteractionRepository implements ledger.InteractionRepository using GORM
type GormInteractionRepository struct {
	db *gorm.DB
}

// NewGormInteractionRepository creates a new GormInteractionRepository
func NewGormInteractionRepository(db *gorm.DB) *GormInteractionRepository {
	return &GormInteractionRepository{db: db}
}

// Upsert keeps a single row per (account, with); a later transaction replaces
// the pointer and the new flag but never the row id or created_at.
func (r *GormInteractionRepository) Upsert(ctx context.Context, interactions []ledger.Interaction) error {
	if len(interactions) == 0 {
		return nil
	}
	// One statement may not touch the same (account, with) twice, which a
	// self-transfer would otherwise do.
	type pair struct{ account, with string }
	seen := make(map[pair]int, len(interactions))
	rows := make([]models.InteractionModel, 0, len(interactions))
	for _, in := range interactions {
		k := pair{in.Account, in.With}
		if i, ok := seen[k]; ok {
			rows[i] = models.InteractionModelFromDomain(in)
			continue
		}
		seen[k] = len(rows)
		rows = append(rows, models.InteractionModelFromDomain(in))
	}
	_, err := UpsertByKey(ctx, r.db, &rows,
		[]string{"account", "with"},
		[]string{"transaction_id", "place_id", "new_interaction", "updated_at"})
	return err
}

var _ ledger.InteractionRepository = (*GormInteractionRepository)(nil)

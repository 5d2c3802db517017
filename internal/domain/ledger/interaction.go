package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Interaction is a feed entry between two accounts, one per (account, with).
type Interaction struct {
	ID             uuid.UUID
	TransactionID  string
	Account        string
	With           string
	PlaceID        *int64
	NewInteraction bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InteractionsFor returns the feed entries of a transaction: one for the sender
// and one, flagged new, for the receiver. Entries are stamped with the
// transaction's own time so replaying an event leaves them unchanged.
func InteractionsFor(tx Transaction, placeID *int64) []Interaction {
	at := tx.UpdatedAt
	if at.IsZero() {
		at = tx.CreatedAt
	}
	return []Interaction{
		{
			ID:             uuid.New(),
			TransactionID:  tx.ID,
			Account:        tx.From,
			With:           tx.To,
			PlaceID:        placeID,
			NewInteraction: false,
			CreatedAt:      at,
			UpdatedAt:      at,
		},
		{
			ID:             uuid.New(),
			TransactionID:  tx.ID,
			Account:        tx.To,
			With:           tx.From,
			PlaceID:        placeID,
			NewInteraction: true,
			CreatedAt:      at,
			UpdatedAt:      at,
		},
	}
}

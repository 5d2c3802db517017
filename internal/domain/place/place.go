package place

import (
	"context"
	"time"
)

// Place is a point of sale of a business. Read-only for the engine.
type Place struct {
	ID          int64
	CreatedAt   time.Time
	BusinessID  int64
	Slug        string
	Name        string
	Accounts    []string
	Description *string
	Image       *string
	Hidden      bool
	Archived    bool
}

// PrimaryAccount returns the first registered account, or ""
func (p *Place) PrimaryAccount() string {
	if len(p.Accounts) == 0 {
		return ""
	}
	return p.Accounts[0]
}

// Repository reads places
type Repository interface {
	// FindByID returns nil, nil when absent
	FindByID(ctx context.Context, id int64) (*Place, error)

	// FindByAccount returns every place whose accounts contain account, by id
	FindByAccount(ctx context.Context, account string) ([]Place, error)
}

package treasury

import (
	"context"
	"time"
)

// Repository reads treasuries. Treasuries are never written by the engine.
type Repository interface {
	// FindByID returns the treasury with its business name, or nil, nil
	FindByID(ctx context.Context, id int64) (*Treasury, error)

	// FindByStrategy lists treasuries using a sync strategy
	FindByStrategy(ctx context.Context, strategy Strategy) ([]Treasury, error)
}

// OperationRepository persists treasury operations through conditional writes.
type OperationRepository interface {
	FindByID(ctx context.Context, id string) (*Operation, error)

	// FindByTreasuryAndStatus lists operations of a treasury in a status, oldest first
	FindByTreasuryAndStatus(ctx context.Context, treasuryID int64, status OperationStatus) ([]Operation, error)

	// AttachTxHash moves every listed operation still pending to confirming and
	// sets its tx hash. Returns rows affected.
	AttachTxHash(ctx context.Context, ids []string, txHash string) (int64, error)

	// ConfirmByTxHash moves every operation confirming with txHash to processed.
	// Returns rows affected; zero on a repeated confirmation.
	ConfirmByTxHash(ctx context.Context, txHash string, at time.Time) (int64, error)

	// ApplyGroup rewrites the representative's metadata and releases every member
	// from pending-periodic to pending, atomically. Returns rows released.
	ApplyGroup(ctx context.Context, group Group) (int64, error)

	// MarkAccountMissing moves pending-periodic operations that can never be
	// settled to processed-account-not-found. Returns rows affected.
	MarkAccountMissing(ctx context.Context, ids []string) (int64, error)
}

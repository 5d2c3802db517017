package order

import "context"

// Repository defines the persistence operations for orders.
// Every write is a single conditional statement; callers never read a status
// and write it back.
type Repository interface {
	// FindByID returns nil, nil when the order does not exist
	FindByID(ctx context.Context, id int64) (*Order, error)

	// FindByTxHash returns every order correlated with a chain tx hash
	FindByTxHash(ctx context.Context, txHash string) ([]Order, error)

	// Finalize sets due to zero, the description, and the status resolved by
	// ResolveFinalStatus against the stored status, in one statement.
	// Returns the number of rows affected.
	Finalize(ctx context.Context, id int64, description string, target Status) (int64, error)

	// AttachTxHash sets tx_hash and status together
	AttachTxHash(ctx context.Context, id int64, txHash string, status Status) (int64, error)
}

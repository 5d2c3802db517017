package shared

import (
	"context"
	"fmt"
	"time"
)

// IdempotencyStore remembers webhook deliveries that were fully reconciled.
// It is an optimisation only: every transition is idempotent on its own.
type IdempotencyStore interface {
	// MarkProcessed records a delivery key with a TTL.
	// Returns true if the key was newly recorded, false if it was already present
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether a delivery key is present
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for delivery dedupe
type IdempotencyConfig struct {
	// TTL is how long a completed delivery key is remembered
	TTL time.Duration

	Enabled bool
}

// DefaultIdempotencyConfig returns the default dedupe configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}

// DeliveryKey builds the dedupe key for a row-change delivery. The status is part
// of the key because the same row legitimately re-enters reconciliation after
// every transition.
func DeliveryKey(table, recordKey, status string) string {
	return fmt.Sprintf("%s:%s:%s", table, recordKey, status)
}

package cache

import (
	"fmt"

	"github.com/reconciler/backend/internal/domain/shared"
	"github.com/reconciler/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Idempotency store backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// IdempotencyStoreFactory creates idempotency stores based on configuration
type IdempotencyStoreFactory struct {
	idempotencyConfig     config.IdempotencyConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory store when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(idem config.IdempotencyConfig, redisCfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		idempotencyConfig:     idem,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateStore creates the configured store. It returns nil, nil when delivery
// dedupe is disabled. A redis backend falls back to memory when Redis is
// unreachable and fallback is allowed.
func (f *IdempotencyStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	if !f.idempotencyConfig.Enabled {
		return nil, nil
	}

	switch f.idempotencyConfig.Backend {
	case BackendMemory, "":
		f.logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(0), nil
	case BackendRedis:
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", f.idempotencyConfig.Backend)
	}

	store, err := NewRedisIdempotencyStore(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"Deliveries are only deduplicated within this process.",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(0), nil
}

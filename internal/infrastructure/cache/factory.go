package cache

import (
	"fmt"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/erp/sourcing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory picks the idempotency backend for the dispatch service
type IdempotencyStoreFactory struct {
	redis         config.RedisConfig
	logger        *zap.Logger
	allowFallback bool
}

// IdempotencyStoreFactoryOption configures an IdempotencyStoreFactory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger used to report the chosen backend
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls what happens when Redis is enabled but
// unreachable at startup: fall back to process memory (the default) or fail.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{redis: cfg, logger: zap.NewNop(), allowFallback: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore connects to Redis when it is enabled. Keys held in memory are
// per instance, so a retried request that lands on another replica runs again.
func (f *IdempotencyStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	if !f.redis.Enabled {
		f.logger.Info("Redis disabled, dispatch idempotency keys kept in memory")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(RedisConfig{
		Host:     f.redis.Host,
		Port:     f.redis.Port,
		Password: f.redis.Password,
		DB:       f.redis.DB,
	})
	switch {
	case err == nil:
		f.logger.Info("Dispatch idempotency keys kept in Redis", zap.String("addr", f.redis.Addr()))
		return store, nil
	case !f.allowFallback:
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	default:
		f.logger.Warn("Redis unreachable, dispatch idempotency keys kept in memory", zap.Error(err))
		return NewInMemoryIdempotencyStore(), nil
	}
}

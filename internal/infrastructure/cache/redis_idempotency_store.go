package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "dispatch:idempotency:"
	// pendingMarker is stored while a claimed request is in flight.
	// Completed results are JSON and can never equal it.
	pendingMarker = "\x00pending"
)

// releaseScript deletes a key only while it still holds the pending marker
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisIdempotencyStore implements IdempotencyStore using Redis.
// It is suitable for deployments where several instances share idempotency state.
type RedisIdempotencyStore struct {
	client     *redis.Client
	ownsClient bool
	keyPrefix  string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisIdempotencyStore connects to Redis and creates a store
func NewRedisIdempotencyStore(cfg RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:     client,
		ownsClient: true,
		keyPrefix:  defaultKeyPrefix,
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis client.
// The caller retains ownership of the client.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Claim reserves key with SETNX so only one caller runs the request
func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, s.keyPrefix+key, pendingMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return claimed, nil
}

// Complete overwrites the claim with the serialized result
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, result, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent result: %w", err)
	}
	return nil
}

// Lookup returns the stored result; an in-flight claim reports found with a nil result
func (s *RedisIdempotencyStore) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if string(data) == pendingMarker {
		return nil, true, nil
	}
	return data, true, nil
}

// Release drops an in-flight claim. Completed results are left alone.
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.keyPrefix + key}, pendingMarker).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Close closes the Redis client if the store created it
func (s *RedisIdempotencyStore) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Close()
}

// Client returns the underlying Redis client (for testing/monitoring)
func (s *RedisIdempotencyStore) Client() *redis.Client {
	return s.client
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

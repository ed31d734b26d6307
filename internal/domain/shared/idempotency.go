package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers the outcome of caller-keyed requests so a repeated
// request replays the first result instead of running the operation again.
type IdempotencyStore interface {
	// Claim reserves key for an in-flight request.
	// Returns false if the key is already claimed or completed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Complete stores the serialized result for a claimed key.
	Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error

	// Lookup returns the stored result for key. A key that is claimed but not
	// yet completed reports found=true with a nil result.
	Lookup(ctx context.Context, key string) (result []byte, found bool, err error)

	// Release drops an in-flight claim so the request can be retried
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a completed result is replayed for the same key
	TTL time.Duration

	// Enabled determines whether idempotency keys are honoured
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}

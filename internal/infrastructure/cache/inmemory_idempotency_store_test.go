package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/sourcing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInMemoryIdempotencyStore_ClaimCompleteLookup(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	key := "create:TO_SUPPLIER:abc"

	_, found, err := store.Lookup(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	claimed, err := store.Claim(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	// second claim loses while first is in flight
	claimed, err = store.Claim(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)

	result, found, err := store.Lookup(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Nil(t, result)

	require.NoError(t, store.Complete(ctx, key, []byte(`{"success":true}`), time.Hour))

	result, found, err = store.Lookup(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"success":true}`, string(result))
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	claimed, _ := store.Claim(ctx, "k", time.Hour)
	require.True(t, claimed)
	require.NoError(t, store.Release(ctx, "k"))

	claimed, _ = store.Claim(ctx, "k", time.Hour)
	assert.True(t, claimed, "released key can be claimed again")

	require.NoError(t, store.Complete(ctx, "k", []byte("done"), time.Hour))
	require.NoError(t, store.Release(ctx, "k"))

	result, found, _ := store.Lookup(ctx, "k")
	assert.True(t, found, "completed key survives release")
	assert.Equal(t, []byte("done"), result)
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	claimed, _ := store.Claim(ctx, "k", time.Minute)
	require.True(t, claimed)

	now = now.Add(2 * time.Minute)

	_, found, _ := store.Lookup(ctx, "k")
	assert.False(t, found)

	claimed, _ = store.Claim(ctx, "k", time.Minute)
	assert.True(t, claimed, "expired claim can be taken again")
}

func TestInMemoryIdempotencyStore_ResultIsCopied(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	payload := []byte("abc")
	require.NoError(t, store.Complete(ctx, "k", payload, time.Hour))
	payload[0] = 'x'

	result, _, _ := store.Lookup(ctx, "k")
	assert.Equal(t, "abc", string(result))

	result[1] = 'y'
	again, _, _ := store.Lookup(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = store.Claim(ctx, fmt.Sprintf("short-%d", i), time.Minute)
	}
	_ = store.Complete(ctx, "long", []byte("r"), time.Hour)
	assert.Equal(t, 6, store.Size())

	now = now.Add(10 * time.Minute)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentClaim(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	var winners int32
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.Claim(ctx, "same-key", time.Hour)
			assert.NoError(t, err)
			if claimed {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestIdempotencyStoreFactory_DisabledRedisUsesMemory(t *testing.T) {
	factory := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false}, WithLogger(zaptest.NewLogger(t)))
	store, err := factory.CreateStore()
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*InMemoryIdempotencyStore)
	assert.True(t, ok)
}

func TestIdempotencyStoreFactory_Fallback(t *testing.T) {
	// nothing listens on port 1
	cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	store, err := NewIdempotencyStoreFactory(cfg, WithLogger(zaptest.NewLogger(t))).CreateStore()
	require.NoError(t, err)
	defer store.Close()
	_, ok := store.(*InMemoryIdempotencyStore)
	assert.True(t, ok)

	_, err = NewIdempotencyStoreFactory(cfg, WithInMemoryFallback(false)).CreateStore()
	assert.Error(t, err)
}

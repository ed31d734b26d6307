//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisIdempotencyStore_Lifecycle(t *testing.T) {
	client := startRedis(t)
	store := NewRedisIdempotencyStoreWithClient(client, "test:")
	ctx := context.Background()

	claimed, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	result, found, err := store.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Nil(t, result)

	require.NoError(t, store.Complete(ctx, "k", []byte(`{"batchId":7}`), time.Minute))
	require.NoError(t, store.Release(ctx, "k"))

	result, found, err = store.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"batchId":7}`, string(result))

	ttl, err := client.TTL(ctx, "test:k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	assert.NoError(t, store.Close())
}

func TestRedisIdempotencyStore_ReleasePending(t *testing.T) {
	client := startRedis(t)
	store := NewRedisIdempotencyStoreWithClient(client, "")
	ctx := context.Background()

	claimed, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.Release(ctx, "k"))

	_, found, err := store.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := client.Exists(ctx, defaultKeyPrefix+"k").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

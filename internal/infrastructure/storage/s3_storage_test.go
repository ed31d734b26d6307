package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/erp/sourcing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testStorageConfig() *config.StorageConfig {
	return &config.StorageConfig{
		Driver:       "s3",
		Bucket:       "sourcing-artifacts",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		Region:       "us-east-1",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
	}
}

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := testStorageConfig()
		cfg.Bucket = ""
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing credentials return error", func(t *testing.T) {
		cfg := testStorageConfig()
		cfg.AccessKey = ""
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")

		cfg = testStorageConfig()
		cfg.SecretKey = ""
		_, err = NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("expiration is capped at seven days", func(t *testing.T) {
		cfg := testStorageConfig()
		cfg.PresignExpiration = 30 * 24 * time.Hour
		storage, err := NewS3ObjectStorage(cfg)
		require.NoError(t, err)
		assert.Equal(t, maxPresignExpiration, storage.presignExpiration)
	})

	t.Run("options apply", func(t *testing.T) {
		storage, err := NewS3ObjectStorage(testStorageConfig(),
			WithLogger(zaptest.NewLogger(t)),
			WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, storage.presignExpiration)
		assert.Equal(t, "sourcing-artifacts", storage.Bucket())
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"", false, ""},
		{"localhost:9000", false, "http://localhost:9000"},
		{"minio.internal:9000", true, "https://minio.internal:9000"},
		{"https://s3.example.com", false, "https://s3.example.com"},
	}
	for _, tt := range tests {
		got, err := normalizeEndpoint(tt.endpoint, tt.useSSL)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestS3ObjectStorage_URL(t *testing.T) {
	ctx := context.Background()

	t.Run("presigned when no public base URL", func(t *testing.T) {
		storage, err := NewS3ObjectStorage(testStorageConfig())
		require.NoError(t, err)

		url, err := storage.URL(ctx, "dispatch/ToSupplier-Acme-1.pdf")
		require.NoError(t, err)
		assert.True(t, strings.Contains(url, "localhost:9000"))
		assert.True(t, strings.Contains(url, "sourcing-artifacts"))
		assert.Contains(t, url, "X-Amz-Signature")
	})

	t.Run("public base URL", func(t *testing.T) {
		cfg := testStorageConfig()
		cfg.PublicBaseURL = "https://files.example.com/"
		storage, err := NewS3ObjectStorage(cfg)
		require.NoError(t, err)

		url, err := storage.URL(ctx, "dispatch/To Supplier.pdf")
		require.NoError(t, err)
		assert.Equal(t, "https://files.example.com/dispatch/To%20Supplier.pdf", url)
	})

	t.Run("empty key", func(t *testing.T) {
		storage, err := NewS3ObjectStorage(testStorageConfig())
		require.NoError(t, err)
		_, err = storage.URL(ctx, "")
		assert.Error(t, err)
	})
}

func TestS3ObjectStorage_EmptyKeyValidation(t *testing.T) {
	storage, err := NewS3ObjectStorage(testStorageConfig())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, storage.Put(ctx, "", []byte("x"), "text/plain"))
	_, err = storage.Get(ctx, "")
	assert.Error(t, err)
	assert.Error(t, storage.Delete(ctx, ""))
}

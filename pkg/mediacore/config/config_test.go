package config

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3storage "github.com/carhub/mediacore/pkg/mediacore/storage/s3"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.StorageType)
	assert.NotEmpty(t, cfg.PublicBaseURL)
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(WithDatabase("postgres", ""))
	assert.Error(t, err)

	_, err = Load(WithS3Storage(s3storage.Config{}))
	assert.Error(t, err)

	_, err = Load(WithPublicBaseURL(""))
	assert.Error(t, err)

	cfg, err := Load(
		WithDatabase("postgres", "postgresql://u:p@localhost/db"),
		WithPublicBaseURL("https://cdn.example.com/media"),
	)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DatabaseType)
}

func TestWithEnv(t *testing.T) {
	t.Setenv("MEDIA_DATABASE_URL", "postgresql://u:p@localhost/db")
	t.Setenv("MEDIA_STORAGE", "s3")
	t.Setenv("MEDIA_S3_BUCKET", "bucket")
	t.Setenv("MEDIA_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("MEDIA_PUBLIC_BASE_URL", "https://cdn.example.com/media")
	t.Setenv("MEDIA_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(WithEnv("MEDIA"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "s3", cfg.StorageType)
	assert.Equal(t, "bucket", cfg.S3.Bucket)
	assert.True(t, cfg.S3.UsePathStyle)
	assert.Equal(t, "https://cdn.example.com/media", cfg.PublicBaseURL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestBuildServiceWithMemoryBackends(t *testing.T) {
	cfg, err := Load(WithMemoryStorage())
	require.NoError(t, err)

	svc, err := cfg.BuildService(context.Background(), slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

// Package config loads deployment configuration and assembles a
// mediacore.Service from it.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carhub/mediacore/pkg/mediacore"
	repomemory "github.com/carhub/mediacore/pkg/mediacore/repo/memory"
	repopg "github.com/carhub/mediacore/pkg/mediacore/repo/postgres"
	memorystorage "github.com/carhub/mediacore/pkg/mediacore/storage/memory"
	s3storage "github.com/carhub/mediacore/pkg/mediacore/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Environment:   "development",
		DatabaseType:  "memory",
		StorageType:   "memory",
		PublicBaseURL: "http://localhost:9000/media",
	}
}

// ServerConfig represents deployment configuration for the media service.
type ServerConfig struct {
	Environment string // development, production, testing

	// Database configuration
	DatabaseType string // "memory", "postgres"
	DatabaseURL  string

	// Storage configuration
	StorageType string // "memory", "s3"
	S3          s3storage.Config

	// Base URL public file URLs are built from (CDN domain in production).
	PublicBaseURL string

	// Redis address for the background task queue. Empty disables queueing
	// and runs media processing inline.
	RedisAddr string
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}
	if c.StorageType != "memory" && c.StorageType != "s3" {
		return errors.New("storage_type must be 'memory' or 's3'")
	}
	if c.StorageType == "s3" && c.S3.Bucket == "" {
		return errors.New("s3 bucket is required when using s3 storage")
	}
	if c.PublicBaseURL == "" {
		return errors.New("public_base_url is required")
	}
	return nil
}

// BuildService creates a Service instance from the configuration. extra
// options are applied after the configured ones, so callers can attach
// collaborators (listing directory, chat authorizer, resource store, queue).
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger, extra ...mediacore.Option) (mediacore.Service, error) {
	repo, err := c.BuildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	store, err := c.BuildBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}

	options := []mediacore.Option{
		mediacore.WithRepository(repo),
		mediacore.WithBlobStore(store),
		mediacore.WithPublicBaseURL(c.PublicBaseURL),
		mediacore.WithLogger(logger),
	}
	options = append(options, extra...)
	return mediacore.New(options...)
}

// BuildRepository creates the configured repository.
func (c *ServerConfig) BuildRepository(ctx context.Context) (mediacore.Repository, error) {
	switch c.DatabaseType {
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return repomemory.New(), nil
	}
}

// BuildBlobStore creates the configured storage backend.
func (c *ServerConfig) BuildBlobStore() (mediacore.BlobStore, error) {
	switch c.StorageType {
	case "s3":
		return s3storage.New(c.S3)
	default:
		return memorystorage.New(), nil
	}
}

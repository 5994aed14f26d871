package config

import (
	"fmt"
	"os"

	s3storage "github.com/carhub/mediacore/pkg/mediacore/storage/s3"
)

// WithEnvironment sets the environment (development, production, testing).
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend.
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithS3Storage configures an S3-compatible storage backend.
func WithS3Storage(cfg s3storage.Config) Option {
	return func(c *ServerConfig) error {
		if cfg.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.StorageType = "s3"
		c.S3 = cfg
		return nil
	}
}

// WithMemoryStorage configures the in-memory storage backend.
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithPublicBaseURL sets the base URL public file URLs are built from.
func WithPublicBaseURL(base string) Option {
	return func(c *ServerConfig) error {
		if base == "" {
			return fmt.Errorf("public base URL cannot be empty")
		}
		c.PublicBaseURL = base
		return nil
	}
}

// WithRedis sets the Redis address for the background task queue.
func WithRedis(addr string) Option {
	return func(c *ServerConfig) error {
		c.RedisAddr = addr
		return nil
	}
}

// WithEnv applies environment variable overrides using the provided prefix.
//
//	DATABASE_URL    - "memory" (default) or a postgresql:// connection string
//	STORAGE         - "memory" (default) or "s3"
//	S3_BUCKET       - bucket name (required for s3)
//	S3_REGION       - AWS region
//	S3_ENDPOINT     - custom endpoint for S3-compatible services
//	PUBLIC_BASE_URL - CDN base URL for public file URLs
//	REDIS_ADDR      - Redis address for the task queue; empty runs inline
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "DATABASE_URL"); ok && v != "" && v != "memory" {
			c.DatabaseType = "postgres"
			c.DatabaseURL = v
		}
		if v, ok := lookupEnv(prefix, "STORAGE"); ok && v != "" {
			c.StorageType = v
		}
		if v, ok := lookupEnv(prefix, "S3_BUCKET"); ok && v != "" {
			c.S3.Bucket = v
		}
		if v, ok := lookupEnv(prefix, "S3_REGION"); ok && v != "" {
			c.S3.Region = v
		}
		if v, ok := lookupEnv(prefix, "S3_ENDPOINT"); ok && v != "" {
			c.S3.Endpoint = v
			c.S3.UsePathStyle = true
		}
		if v, ok := lookupEnv(prefix, "PUBLIC_BASE_URL"); ok && v != "" {
			c.PublicBaseURL = v
		}
		if v, ok := lookupEnv(prefix, "REDIS_ADDR"); ok && v != "" {
			c.RedisAddr = v
		}
		return nil
	}
}

func lookupEnv(prefix, key string) (string, bool) {
	if prefix != "" {
		key = prefix + "_" + key
	}
	return os.LookupEnv(key)
}

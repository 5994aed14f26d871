package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carhub/mediacore/pkg/mediacore"
	repopg "github.com/carhub/mediacore/pkg/mediacore/repo/postgres"
	s3storage "github.com/carhub/mediacore/pkg/mediacore/storage/s3"
	"github.com/carhub/mediacore/pkg/mediacore/worker"
)

type Config struct {
	DB    DbConfig
	S3    S3Config
	Redis RedisConfig

	PublicBaseURL string `env:"MEDIA_PUBLIC_BASE_URL" env-default:"http://localhost:9000/media"`
	Concurrency   int    `env:"WORKER_CONCURRENCY" env-default:"10"`

	// Cron spec for the temp-file sweep, in the scheduler's local time.
	SweepSchedule string `env:"TEMP_SWEEP_SCHEDULE" env-default:"0 2 * * *"`
}

type DbConfig struct {
	Port     uint16 `env:"MEDIA_PG_PORT" env-default:"5432"`
	Host     string `env:"MEDIA_PG_HOST" env-default:"localhost"`
	Name     string `env:"MEDIA_PG_NAME" env-default:"carhub_db"`
	User     string `env:"MEDIA_PG_USER" env-default:"media"`
	Password string `env:"MEDIA_PG_PASSWORD" env-default:"pwd"`
}

type S3Config struct {
	Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:"http://localhost:9000"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:"minioadmin"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:"minioadmin"`
	BucketName      string `env:"AWS_S3_BUCKET" env-default:"media-bucket"`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UsePathStyle    bool   `env:"AWS_S3_PATH_STYLE" env-default:"true"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

func (c DbConfig) toDatabaseUrl() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}
	return u.String()
}

func NewDbPool(ctx context.Context, dbConfig DbConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dbConfig.toDatabaseUrl())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		logger.Error("failed to read configuration", "err", err)
		os.Exit(1)
	}

	pool, err := NewDbPool(ctx, config.DB)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := s3storage.New(s3storage.Config{
		Region:          config.S3.Region,
		Bucket:          config.S3.BucketName,
		AccessKeyID:     config.S3.AccessKeyID,
		SecretAccessKey: config.S3.SecretAccessKey,
		Endpoint:        config.S3.Endpoint,
		UsePathStyle:    config.S3.UsePathStyle,
	})
	if err != nil {
		logger.Error("failed to initialize storage backend", "err", err)
		os.Exit(1)
	}

	svc, err := mediacore.New(
		mediacore.WithRepository(repopg.NewWithPool(pool)),
		mediacore.WithBlobStore(store),
		mediacore.WithPublicBaseURL(config.PublicBaseURL),
		mediacore.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build media service", "err", err)
		os.Exit(1)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: config.Concurrency,
	})
	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(config.SweepSchedule,
		asynq.NewTask(worker.TypeSweepTempFiles, nil)); err != nil {
		logger.Error("failed to register sweep schedule", "err", err)
		os.Exit(1)
	}

	processor := worker.NewProcessor(svc, logger)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		scheduler.Shutdown()
		server.Shutdown()
	}()

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error("scheduler stopped", "err", err)
		}
	}()

	logger.Info("media worker starting",
		"concurrency", config.Concurrency, "sweep_schedule", config.SweepSchedule)
	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}

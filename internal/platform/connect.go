package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-social/pkg/cache"
	cachememory "github.com/tendant/simple-social/pkg/cache/memory"
	cacheredis "github.com/tendant/simple-social/pkg/cache/redis"
	"github.com/tendant/simple-social/pkg/eventbus"
	busmemory "github.com/tendant/simple-social/pkg/eventbus/memory"
	"github.com/tendant/simple-social/pkg/eventbus/rabbitmq"
	"github.com/tendant/simple-social/pkg/media"
	"github.com/tendant/simple-social/pkg/media/storage/memory"
	"github.com/tendant/simple-social/pkg/media/storage/s3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultConnectTimeout = 10 * time.Second

func NewDbPool(ctx context.Context, dbConfig DbConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dbConfig.ToDatabaseUrl())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	timeout := dbConfig.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewBus returns the event bus. The broker connection is established in the
// background and retried until ctx is done, so the caller can start serving
// right away.
func NewBus(ctx context.Context, cfg RabbitConfig, logger *slog.Logger) (eventbus.Bus, error) {
	dispatch := eventbus.DefaultDispatchConfig()
	dispatch.Logger = logger
	dispatch.HandlerTimeout = cfg.HandlerTimeout
	dispatch.RedeliveryDelay = cfg.RedeliveryDelay

	switch cfg.Transport {
	case BusMemory:
		logger.Warn("Using in-process event bus, events stay within this process")
		return busmemory.New(busmemory.WithDispatchConfig(dispatch)), nil
	case BusRabbitMQ, "":
		if cfg.URL == "" {
			return nil, fmt.Errorf("RABBITMQ_URL is required, set EVENT_BUS=%s for a single-process setup", BusMemory)
		}
	default:
		return nil, fmt.Errorf("unknown event bus %q", cfg.Transport)
	}

	bus := rabbitmq.New(rabbitmq.Config{
		URL:            cfg.URL,
		Exchange:       cfg.Exchange,
		DialTimeout:    cfg.DialTimeout,
		PublishTimeout: cfg.PublishTimeout,
		RetryInterval:  cfg.RetryInterval,
		Dispatch:       dispatch,
		Logger:         logger,
	})
	go func() {
		if err := bus.Connect(ctx); err != nil {
			logger.Warn("Event bus connect loop stopped", "err", err)
			return
		}
		logger.Info("Connected to event bus", "exchange", cfg.Exchange)
	}()
	return bus, nil
}

// NewCache returns the cache store. An unreachable Redis is logged but not
// fatal since every cache caller tolerates cache errors.
func NewCache(ctx context.Context, cfg RedisConfig, logger *slog.Logger) cache.Store {
	if cfg.Addr == "" {
		logger.Warn("REDIS_ADDR not set, using in-process cache")
		return cachememory.New()
	}
	store := cacheredis.New(cacheredis.Config{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := store.Ping(ctx); err != nil {
		logger.Warn("Redis not reachable, continuing", "addr", cfg.Addr, "err", err)
	}
	return store
}

// ConnectMongo connects and pings within cfg.ConnectTimeout.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, client.Database(cfg.Database), nil
}

// NewBlobStore returns the remote asset store.
func NewBlobStore(ctx context.Context, cfg S3Config, logger *slog.Logger) (media.BlobStore, error) {
	if cfg.BucketName == "" {
		logger.Warn("AWS_S3_BUCKET not set, using in-process asset store")
		return memory.New(), nil
	}
	backend, err := s3.New(ctx, s3.Config{
		Region:                 cfg.Region,
		Bucket:                 cfg.BucketName,
		AccessKeyID:            cfg.AccessKeyID,
		SecretAccessKey:        cfg.SecretAccessKey,
		Endpoint:               cfg.Endpoint,
		UsePathStyle:           cfg.UsePathStyle,
		PublicBaseURL:          cfg.PublicBaseURL,
		CreateBucketIfNotExist: cfg.CreateBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 backend: %w", err)
	}
	return backend, nil
}

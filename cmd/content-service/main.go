package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-social/internal/platform"
	"github.com/tendant/simple-social/pkg/content"
	"github.com/tendant/simple-social/pkg/content/api"
	"github.com/tendant/simple-social/pkg/content/repo/memory"
	"github.com/tendant/simple-social/pkg/content/repo/postgres"
	"github.com/tendant/simple-social/pkg/httpapi"
)

type Config struct {
	DatabaseType string `env:"DATABASE_TYPE" env-default:"postgres"`
	DB           platform.DbConfig
	Redis        platform.RedisConfig
	Rabbit       platform.RabbitConfig
	Cache        CacheConfig
}

type CacheConfig struct {
	ItemTTL      time.Duration `env:"CACHE_ITEM_TTL" env-default:"1h"`
	ListTTL      time.Duration `env:"CACHE_LIST_TTL" env-default:"5m"`
	TombstoneTTL time.Duration `env:"CACHE_TOMBSTONE_TTL" env-default:"30s"`
}

func main() {
	var config Config
	if err := platform.Load(&config); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repo content.Repository
	switch config.DatabaseType {
	case "memory":
		repo = memory.New()
	default:
		dbPool, err := platform.NewDbPool(ctx, config.DB)
		if err != nil {
			slog.Error("Failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		pgRepo := postgres.NewWithPool(dbPool)
		if err := pgRepo.Migrate(ctx); err != nil {
			slog.Error("Failed to migrate database", "err", err)
			os.Exit(1)
		}
		repo = pgRepo
	}

	bus, err := platform.NewBus(ctx, config.Rabbit, logger)
	if err != nil {
		slog.Error("Failed to create event bus", "err", err)
		os.Exit(1)
	}
	defer bus.Close()

	contentService, err := content.New(
		content.WithRepository(repo),
		content.WithPublisher(bus),
		content.WithCache(platform.NewCache(ctx, config.Redis, logger)),
		content.WithTTLs(config.Cache.ItemTTL, config.Cache.ListTTL),
		content.WithTombstoneTTL(config.Cache.TombstoneTTL),
		content.WithSideEffectTimeout(config.Rabbit.PublishTimeout),
		content.WithLogger(logger),
	)
	if err != nil {
		slog.Error("Failed to create content service", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	contentHandler := api.NewContentHandler(contentService)
	server.R.Route("/api", func(r chi.Router) {
		r.Use(httpapi.Recovery)
		r.Mount("/content", contentHandler.Routes())
	})

	server.Run()
}

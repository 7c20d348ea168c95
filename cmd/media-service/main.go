package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-social/internal/platform"
	"github.com/tendant/simple-social/pkg/httpapi"
	"github.com/tendant/simple-social/pkg/media"
	"github.com/tendant/simple-social/pkg/media/api"
	"github.com/tendant/simple-social/pkg/media/repo/memory"
	"github.com/tendant/simple-social/pkg/media/repo/postgres"
)

type Config struct {
	DatabaseType string `env:"DATABASE_TYPE" env-default:"postgres"`
	DB           platform.DbConfig
	Rabbit       platform.RabbitConfig
	S3           platform.S3Config
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

	var repo media.Repository
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

	blobStore, err := platform.NewBlobStore(ctx, config.S3, logger)
	if err != nil {
		slog.Error("Failed to initialize asset store", "err", err)
		os.Exit(1)
	}

	mediaService, err := media.New(
		media.WithRepository(repo),
		media.WithBlobStore(blobStore),
		media.WithLogger(logger),
	)
	if err != nil {
		slog.Error("Failed to create media service", "err", err)
		os.Exit(1)
	}

	bus, err := platform.NewBus(ctx, config.Rabbit, logger)
	if err != nil {
		slog.Error("Failed to create event bus", "err", err)
		os.Exit(1)
	}
	defer bus.Close()
	sub := platform.RetryingSubscriber(bus, config.Rabbit.RetryInterval, logger)
	if err := media.Subscribe(ctx, sub, mediaService); err != nil {
		slog.Error("Failed to subscribe to content events", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	mediaHandler := api.NewMediaHandler(mediaService)
	server.R.Route("/api", func(r chi.Router) {
		r.Use(httpapi.Recovery)
		r.Mount("/media", mediaHandler.Routes())
	})

	server.Run()
}

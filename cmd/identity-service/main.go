package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-social/internal/platform"
	"github.com/tendant/simple-social/pkg/httpapi"
	"github.com/tendant/simple-social/pkg/identity"
	"github.com/tendant/simple-social/pkg/identity/api"
	"github.com/tendant/simple-social/pkg/identity/repo/memory"
	"github.com/tendant/simple-social/pkg/identity/repo/postgres"
)

type Config struct {
	DatabaseType string `env:"DATABASE_TYPE" env-default:"postgres"`
	DB           platform.DbConfig
	JWT          platform.JWTConfig
}

func main() {
	var config Config
	if err := platform.Load(&config); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.Default()
	ctx := context.Background()

	var repo identity.Repository
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

	identityService, err := identity.New(
		identity.WithRepository(repo),
		identity.WithSigningKey([]byte(config.JWT.Secret)),
		identity.WithTokenTTL(config.JWT.TokenTTL),
		identity.WithLogger(logger),
	)
	if err != nil {
		slog.Error("Failed to create identity service", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	identityHandler := api.NewIdentityHandler(identityService)
	server.R.Route("/api", func(r chi.Router) {
		r.Use(httpapi.Recovery)
		r.Mount("/auth", identityHandler.Routes())
	})

	server.Run()
}

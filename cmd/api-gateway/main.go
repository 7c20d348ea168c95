package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-social/internal/platform"
	"github.com/tendant/simple-social/pkg/gateway"
)

type Config struct {
	Redis    platform.RedisConfig
	JWT      platform.JWTConfig
	Services ServicesConfig
	Limits   LimitsConfig

	UpstreamTimeout   time.Duration `env:"UPSTREAM_TIMEOUT" env-default:"30s"`
	AllowedOrigins    string        `env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS" env-default:"false"`
}

type ServicesConfig struct {
	Identity string `env:"IDENTITY_SERVICE_URL" env-default:"http://localhost:3001"`
	Content  string `env:"CONTENT_SERVICE_URL" env-default:"http://localhost:3002"`
	Media    string `env:"MEDIA_SERVICE_URL" env-default:"http://localhost:3003"`
	Search   string `env:"SEARCH_SERVICE_URL" env-default:"http://localhost:3004"`
}

type LimitsConfig struct {
	Requests int           `env:"RATE_LIMIT_REQUESTS" env-default:"100"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"15m"`
}

func routes(cfg ServicesConfig) ([]gateway.Route, error) {
	table := []struct {
		svc      string
		upstream string
		identity bool
	}{
		{"auth", cfg.Identity, false},
		{"content", cfg.Content, true},
		{"media", cfg.Media, true},
		{"search", cfg.Search, true},
	}

	var out []gateway.Route
	for _, t := range table {
		u, err := url.Parse(t.upstream)
		if err != nil {
			return nil, fmt.Errorf("invalid %s service url: %w", t.svc, err)
		}
		out = append(out, gateway.Route{
			Prefix:          "/v1/" + t.svc,
			Upstream:        u,
			TargetPrefix:    "/api/" + t.svc,
			RequireIdentity: t.identity,
		})
	}
	return out, nil
}

func main() {
	var config Config
	if err := platform.Load(&config); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.Default()

	routeTable, err := routes(config.Services)
	if err != nil {
		slog.Error("Failed to build routes", "err", err)
		os.Exit(1)
	}

	gw, err := gateway.New(gateway.Config{
		Routes:            routeTable,
		JWTSecret:         []byte(config.JWT.Secret),
		Limits:            platform.NewCache(context.Background(), config.Redis, logger),
		RateLimit:         config.Limits.Requests,
		RateWindow:        config.Limits.Window,
		UpstreamTimeout:   config.UpstreamTimeout,
		AllowedOrigins:    strings.Split(config.AllowedOrigins, ","),
		TrustProxyHeaders: config.TrustProxyHeaders,
		Logger:            logger,
	})
	if err != nil {
		slog.Error("Failed to create gateway", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Mount("/v1", gw.Handler())

	server.Run()
}

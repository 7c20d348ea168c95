package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-social/internal/platform"
	"github.com/tendant/simple-social/pkg/httpapi"
	"github.com/tendant/simple-social/pkg/search"
	"github.com/tendant/simple-social/pkg/search/api"
	"github.com/tendant/simple-social/pkg/search/index/memory"
	"github.com/tendant/simple-social/pkg/search/index/mongo"
)

type Config struct {
	IndexType string `env:"SEARCH_INDEX_TYPE" env-default:"mongo"`
	Mongo     platform.MongoConfig
	Rabbit    platform.RabbitConfig
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

	var index search.Index
	switch config.IndexType {
	case "memory":
		index = memory.New(memory.WithTombstoneRetention(config.Mongo.TombstoneWindow))
	default:
		client, db, err := platform.ConnectMongo(ctx, config.Mongo)
		if err != nil {
			slog.Error("Failed to connect to mongo", "err", err)
			os.Exit(1)
		}
		defer client.Disconnect(context.Background())

		mongoIndex := mongo.New(db, mongo.Config{TombstoneRetention: config.Mongo.TombstoneWindow})
		if err := mongoIndex.EnsureIndexes(ctx); err != nil {
			slog.Error("Failed to create search indexes", "err", err)
			os.Exit(1)
		}
		index = mongoIndex
	}

	searchService, err := search.New(index, search.WithLogger(logger))
	if err != nil {
		slog.Error("Failed to create search service", "err", err)
		os.Exit(1)
	}

	bus, err := platform.NewBus(ctx, config.Rabbit, logger)
	if err != nil {
		slog.Error("Failed to create event bus", "err", err)
		os.Exit(1)
	}
	defer bus.Close()
	sub := platform.RetryingSubscriber(bus, config.Rabbit.RetryInterval, logger)
	if err := searchService.Subscribe(ctx, sub); err != nil {
		slog.Error("Failed to subscribe to content events", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	searchHandler := api.NewSearchHandler(searchService)
	server.R.Route("/api", func(r chi.Router) {
		r.Use(httpapi.Recovery)
		r.Mount("/search", searchHandler.Routes())
	})

	server.Run()
}

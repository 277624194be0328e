package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"cineledger/internal/config"
	"cineledger/internal/database"
	"cineledger/internal/logger"
	"cineledger/internal/repository"
	"cineledger/internal/search"
	"cineledger/internal/service"
)

var (
	pageSize = flag.Int("page-size", 500, "Showtimes read from the database per batch")
	timeout  = flag.Duration("timeout", 10*time.Minute, "Overall time limit")
)

// reindex rebuilds the showtime search index from the database
func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	index, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(service.Deps{
		Showtimes: repos.Showtimes,
		Halls:     repos.Halls,
		Index:     index,
	}, cfg.Booking)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	indexed, err := services.Showtimes.Reindex(ctx, *pageSize)
	if err != nil {
		logger.Fatal("Reindex failed", "indexed", indexed, "error", err)
	}

	slog.Info("Reindex completed", "indexed", indexed, "duration", time.Since(start))
}

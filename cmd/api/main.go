package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"cineledger/internal/api"
	"cineledger/internal/cache"
	"cineledger/internal/config"
	"cineledger/internal/database"
	"cineledger/internal/external"
	"cineledger/internal/jobs"
	"cineledger/internal/logger"
	"cineledger/internal/messaging"
	"cineledger/internal/repository"
	"cineledger/internal/search"
	"cineledger/internal/service"
	"cineledger/internal/validation"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if err := validation.Register(); err != nil {
		logger.Fatal("Failed to register validators", "error", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	repos := repository.NewRepositories(db)
	deps := service.Deps{
		Seats:     repos.Seats,
		Bookings:  repos.Bookings,
		Users:     repos.Users,
		Vouchers:  repos.Vouchers,
		Showtimes: repos.Showtimes,
		Halls:     repos.Halls,
		Payment:   external.NewPaymentClient(cfg.Payment),
	}

	// The bus, the cache and the index are optional; the ledger works without them
	probes := make(map[string]api.DependencyCheck)
	var reaperEvents jobs.Publisher
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		slog.Warn("NATS unavailable, events will not be published", "error", err)
	} else {
		defer natsClient.Close()
		deps.Events = natsClient
		reaperEvents = natsClient
		probes["nats"] = natsClient.Ping
	}

	var reaperCache jobs.CacheInvalidator
	seatMapCache, err := cache.NewSeatMapCache(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, seat maps will not be cached", "error", err)
	} else {
		defer seatMapCache.Close()
		deps.Cache = seatMapCache
		reaperCache = seatMapCache
		probes["redis"] = seatMapCache.Ping
	}

	index, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		slog.Warn("Elasticsearch unavailable, showtime search uses the database", "error", err)
	} else {
		deps.Index = index
		probes["elasticsearch"] = index.HealthCheck
	}

	services := service.NewServices(deps, cfg.Booking)
	server := api.NewServer(cfg, services, db)
	for name, probe := range probes {
		server.AddDependency(name, probe)
	}
	reaper := jobs.NewReaperJob(repos.Seats, services.Bookings, reaperEvents, reaperCache,
		cfg.Reaper.Interval, cfg.Reaper.PendingBookingTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return reaper.Run(gctx) })

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
		return
	}

	slog.Info("Server stopped")
}

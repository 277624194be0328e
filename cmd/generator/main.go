package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cineledger/internal/config"
	"cineledger/internal/database"
	"cineledger/internal/logger"
	"cineledger/internal/middleware"
	"cineledger/internal/models"
	"cineledger/internal/repository"
	"cineledger/internal/service"
)

var (
	showtimeCount = flag.Int("showtimes", 6, "Number of showtimes to schedule")
	customerCount = flag.Int("customers", 3, "Number of customer accounts to create")
	movieID       = flag.Int64("movie", 1, "Movie ID for the generated showtimes")
	tokenTTL      = flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed access tokens")
	dryRun        = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

// defaultLayout is a small hall: two VIP rows at the back
var defaultLayout = []models.HallRow{
	{Row: "A", Seats: 10, SeatType: "standard"},
	{Row: "B", Seats: 10, SeatType: "standard"},
	{Row: "C", Seats: 10, SeatType: "standard"},
	{Row: "D", Seats: 12, SeatType: "standard"},
	{Row: "E", Seats: 8, SeatType: "vip"},
	{Row: "F", Seats: 8, SeatType: "vip"},
}

var defaultPrices = map[string]int64{
	"standard": 90000,
	"vip":      150000,
}

type Generator struct {
	cfg       *config.Config
	repos     *repository.Repositories
	showtimes *service.ShowtimeService
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	seats, err := service.LayoutSeats(defaultLayout, defaultPrices)
	if err != nil {
		logger.Fatal("Invalid hall layout", "error", err)
	}
	if *dryRun {
		slog.Info("Dry run",
			"seats_per_showtime", len(seats),
			"showtimes", *showtimeCount,
			"customers", *customerCount)
		return
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
	services := service.NewServices(service.Deps{
		Seats:     repos.Seats,
		Bookings:  repos.Bookings,
		Users:     repos.Users,
		Vouchers:  repos.Vouchers,
		Showtimes: repos.Showtimes,
		Halls:     repos.Halls,
	}, cfg.Booking)

	g := &Generator{cfg: cfg, repos: repos, showtimes: services.Showtimes}
	if err := g.Run(context.Background()); err != nil {
		slog.Error("Generation failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Generation completed successfully!")
}

func (g *Generator) Run(ctx context.Context) error {
	hall := &models.Hall{CinemaID: 1, Name: "Hall 1", Layout: defaultLayout}
	if err := g.repos.Halls.Create(ctx, hall); err != nil {
		return fmt.Errorf("failed to create hall: %w", err)
	}
	slog.Info("Created hall", "hall_id", hall.ID)

	if err := g.createUsers(ctx); err != nil {
		return err
	}
	if err := g.createVouchers(ctx); err != nil {
		return err
	}

	// Screenings every three hours starting tomorrow at 10:00
	start := time.Now().Truncate(24*time.Hour).Add(24*time.Hour + 10*time.Hour)
	for i := 0; i < *showtimeCount; i++ {
		resp, err := g.showtimes.Create(ctx, &models.CreateShowtimeRequest{
			MovieID:   *movieID,
			HallID:    hall.ID,
			StartTime: start.Add(time.Duration(i) * 3 * time.Hour),
			Prices:    defaultPrices,
		})
		if err != nil {
			return fmt.Errorf("failed to schedule showtime %d: %w", i+1, err)
		}
		slog.Info("Scheduled showtime", "showtime_id", resp.ID, "seats", resp.TotalSeats)
	}

	return nil
}

func (g *Generator) createUsers(ctx context.Context) error {
	users := []*models.User{{Email: "admin@cineledger.local", FullName: "Box Office", Role: models.RoleAdmin}}
	for i := 1; i <= *customerCount; i++ {
		users = append(users, &models.User{
			Email:    fmt.Sprintf("customer%d@cineledger.local", i),
			FullName: fmt.Sprintf("Customer %d", i),
			Role:     models.RoleUser,
			Points:   int64(i) * 10000,
		})
	}

	for _, u := range users {
		existing, err := g.repos.Users.GetByEmail(ctx, u.Email)
		if err != nil {
			return fmt.Errorf("failed to look up user %s: %w", u.Email, err)
		}
		if existing != nil {
			u = existing
		} else if err := g.repos.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("failed to create user %s: %w", u.Email, err)
		}
		token, err := middleware.IssueToken(g.cfg.JWTSecret, u.UserID, u.Role, *tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to issue token for %s: %w", u.Email, err)
		}
		fmt.Printf("%-32s role=%-8s id=%d token=%s\n", u.Email, u.Role, u.UserID, token)
	}
	return nil
}

func (g *Generator) createVouchers(ctx context.Context) error {
	maxDiscount := int64(50000)
	expires := time.Now().AddDate(0, 1, 0)

	vouchers := []*models.Voucher{
		{Code: "WELCOME20", DiscountType: models.DiscountPercent, DiscountValue: 20, MaxDiscount: &maxDiscount, ExpiresAt: &expires, IsActive: true},
		{Code: "MINUS30K", DiscountType: models.DiscountFixed, DiscountValue: 30000, MinOrder: 150000, UsageLimit: 100, IsActive: true},
	}
	for _, v := range vouchers {
		if err := g.repos.Vouchers.Create(ctx, v); err != nil {
			return fmt.Errorf("failed to create voucher %s: %w", v.Code, err)
		}
		slog.Info("Created voucher", "code", v.Code)
	}
	return nil
}

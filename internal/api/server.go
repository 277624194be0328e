package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cineledger/internal/config"
	"cineledger/internal/database"
	"cineledger/internal/handlers"
	"cineledger/internal/middleware"
	"cineledger/internal/service"
)

// HealthChecker reports database reachability for /health
type HealthChecker interface {
	HealthCheck(ctx context.Context) database.HealthCheck
}

// DependencyCheck probes an optional backend (bus, cache, index)
type DependencyCheck func(ctx context.Context) error

// Server is the HTTP surface of the booking core
type Server struct {
	router       *gin.Engine
	config       *config.Config
	health       HealthChecker
	dependencies map[string]DependencyCheck
	srv          *http.Server
}

func NewServer(cfg *config.Config, services *service.Services, health HealthChecker) *Server {
	gin.SetMode(cfg.GinMode)

	s := &Server{
		router:       gin.New(),
		config:       cfg,
		health:       health,
		dependencies: make(map[string]DependencyCheck),
	}
	s.setupRoutes(handlers.NewHandlers(services))

	s.srv = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout,
	}
	return s
}

func (s *Server) setupRoutes(h *handlers.Handlers) {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")

	// The gateway cannot carry a bearer token; callbacks are verified by signature
	api.POST("/payments/callback", h.PaymentCallback)
	api.GET("/payments/callback", h.PaymentCallback)

	showtimes := api.Group("/showtimes")
	{
		showtimes.GET("", h.SearchShowtimes)
		showtimes.GET("/:id/seats", h.GetSeatMap)
	}

	authed := api.Group("", middleware.JWTAuth(s.config.JWTSecret))

	seats := authed.Group("/seats")
	{
		seats.POST("/hold", h.HoldSeats)
		seats.POST("/release", h.ReleaseSeats)
	}

	bookings := authed.Group("/bookings")
	{
		bookings.POST("/initialize-payment", h.InitializePayment)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PUT("/:id/cancel", h.CancelBooking)
		bookings.PUT("/:id/exchange", h.ExchangeTicket)
	}

	admin := authed.Group("/admin", middleware.RequireAdmin())
	{
		admin.POST("/showtimes", h.CreateShowtime)
		admin.DELETE("/showtimes/:id", h.DeleteShowtime)
		admin.POST("/bookings/:id/change-seats", h.ChangeSeatsAtCounter)
		admin.POST("/bookings/:id/combos", h.AddCombosAtCounter)
		admin.PATCH("/bookings/:id/use", h.MarkUsed)
	}
}

// AddDependency registers an optional backend reported by /health. A failing
// dependency degrades the status without failing the probe.
func (s *Server) AddDependency(name string, check DependencyCheck) {
	s.dependencies[name] = check
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := database.StatusHealthy
	body := gin.H{"service": "cineledger-api"}

	if s.health != nil {
		check := s.health.HealthCheck(ctx)
		body["database"] = check
		status = check.Status
	}

	deps := make(map[string]string, len(s.dependencies))
	for name, check := range s.dependencies {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			if status == database.StatusHealthy {
				status = database.StatusDegraded
			}
			continue
		}
		deps[name] = "up"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	body["status"] = status

	code := http.StatusOK
	if status == database.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return <-errCh
}

// Router is exposed for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

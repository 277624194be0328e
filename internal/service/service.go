package service

import (
	"context"
	"time"

	"cineledger/internal/config"
	"cineledger/internal/external"
	"cineledger/internal/logger"
	"cineledger/internal/models"
	"cineledger/internal/repository"
	"cineledger/internal/search"
)

// SeatLedger is the per-showtime seat store. Every mutating method is a
// single conditional update and reports the seats it actually changed.
type SeatLedger interface {
	GetByShowtime(ctx context.Context, showtimeID int64) ([]models.Seat, error)
	GetByLabels(ctx context.Context, showtimeID int64, labels []string) ([]models.Seat, error)
	Hold(ctx context.Context, showtimeID, userID int64, labels []string, until time.Time) (*repository.HoldResult, error)
	Release(ctx context.Context, showtimeID, userID int64, labels []string) ([]string, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	GetByUserID(ctx context.Context, userID int64) ([]models.Booking, error)
	CommittedSeats(ctx context.Context, showtimeID, userID int64, labels []string) ([]string, error)
	CompletePayment(ctx context.Context, booking *models.Booking, transactionID string, pointsEarned int64, paidAt time.Time) (*repository.CompletionResult, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
	Discard(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, booking *models.Booking) ([]string, error)
	SwapSeats(ctx context.Context, swap repository.SeatSwap) error
	AddCombos(ctx context.Context, id string, combos []models.ComboItem, amount int64) (bool, error)
	MarkUsed(ctx context.Context, id string) (bool, error)
	FailStalePending(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	DebitPoints(ctx context.Context, userID, amount int64) (bool, error)
	AdjustPoints(ctx context.Context, userID, delta int64) (int64, error)
}

type VoucherStore interface {
	GetByCode(ctx context.Context, code string) (*models.Voucher, error)
	IncrementUsage(ctx context.Context, code string) (bool, error)
	DecrementUsage(ctx context.Context, code string) (bool, error)
}

type ShowtimeStore interface {
	Create(ctx context.Context, showtime *models.Showtime) error
	GetByID(ctx context.Context, id int64) (*models.Showtime, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) (bool, error)
	ListActive(ctx context.Context, filter repository.ShowtimeFilter) ([]models.Showtime, error)
}

type HallStore interface {
	GetByID(ctx context.Context, id int64) (*models.Hall, error)
}

type PaymentProvider interface {
	Initiate(ctx context.Context, amount int64, orderID, description string) (*external.PaymentInitResponse, error)
	VerifyCallback(cb models.PaymentCallback) bool
}

type EventPublisher interface {
	Publish(subject string, data any) error
}

type SeatMapCache interface {
	Get(ctx context.Context, showtimeID int64) (*models.SeatMapResponse, error)
	Set(ctx context.Context, seatMap *models.SeatMapResponse) error
	Invalidate(ctx context.Context, showtimeIDs ...int64) error
}

type ShowtimeIndex interface {
	IndexShowtime(ctx context.Context, showtime *models.Showtime) error
	DeleteShowtime(ctx context.Context, id int64) error
	SearchShowtimes(ctx context.Context, q search.ShowtimeQuery) ([]models.ShowtimeSearchItem, error)
}

// Deps collects the collaborators of the services. Events, Cache and Index
// are optional.
type Deps struct {
	Seats     SeatLedger
	Bookings  BookingStore
	Users     UserStore
	Vouchers  VoucherStore
	Showtimes ShowtimeStore
	Halls     HallStore
	Payment   PaymentProvider
	Events    EventPublisher
	Cache     SeatMapCache
	Index     ShowtimeIndex
	Now       func() time.Time
}

type Services struct {
	Seats     *SeatService
	Bookings  *BookingService
	Showtimes *ShowtimeService
}

func NewServices(deps Deps, cfg config.BookingConfig) *Services {
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}
	if deps.Cache == nil {
		deps.Cache = noopCache{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	side := &sideEffects{events: deps.Events, cache: deps.Cache}

	return &Services{
		Seats:     NewSeatService(deps.Seats, deps.Showtimes, side, cfg.HoldDuration, deps.Now),
		Bookings:  NewBookingService(deps, side, cfg),
		Showtimes: NewShowtimeService(deps.Showtimes, deps.Halls, deps.Index, side, deps.Now),
	}
}

// sideEffects groups the fire-and-forget work that follows a ledger change
type sideEffects struct {
	events EventPublisher
	cache  SeatMapCache
}

func (s *sideEffects) publish(ctx context.Context, subject string, data any) {
	if err := s.events.Publish(subject, data); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event", "subject", subject, "error", err)
	}
}

func (s *sideEffects) invalidate(ctx context.Context, showtimeIDs ...int64) {
	if err := s.cache.Invalidate(ctx, showtimeIDs...); err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate seat map cache", "showtime_ids", showtimeIDs, "error", err)
	}
}

func (s *sideEffects) seatsChanged(ctx context.Context, showtimeID int64, labels []string, status, reason string, at time.Time) {
	s.invalidate(ctx, showtimeID)
	if len(labels) == 0 {
		return
	}
	s.publish(ctx, models.EventSeatUpdated, models.SeatUpdatedEvent{
		ShowtimeID: showtimeID,
		Labels:     labels,
		Status:     status,
		Reason:     reason,
		Timestamp:  at,
	})
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) error { return nil }

type noopCache struct{}

func (noopCache) Get(context.Context, int64) (*models.SeatMapResponse, error) { return nil, nil }
func (noopCache) Set(context.Context, *models.SeatMapResponse) error          { return nil }
func (noopCache) Invalidate(context.Context, ...int64) error                  { return nil }

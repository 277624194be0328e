package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "cineledger/internal/errors"
	"cineledger/internal/logger"
	"cineledger/internal/metrics"
	"cineledger/internal/models"
	"cineledger/internal/repository"
	"cineledger/internal/validation"
)

// SeatService places and drops short-lived holds on showtime seats
type SeatService struct {
	seats        SeatLedger
	showtimes    ShowtimeStore
	side         *sideEffects
	holdDuration time.Duration
	now          func() time.Time
}

func NewSeatService(seats SeatLedger, showtimes ShowtimeStore, side *sideEffects, holdDuration time.Duration, now func() time.Time) *SeatService {
	return &SeatService{
		seats:        seats,
		showtimes:    showtimes,
		side:         side,
		holdDuration: holdDuration,
		now:          now,
	}
}

// HoldSeats holds every requested seat or none of them. Available seats are
// taken and the caller's own holds are extended in one conditional update;
// if that still leaves some seats unheld, whatever this call newly acquired
// is released again and the call fails naming the seats it could not get.
func (s *SeatService) HoldSeats(ctx context.Context, userID int64, req *models.HoldSeatsRequest) (*models.HoldSeatsResponse, error) {
	if err := validation.SeatLabels("seat_labels", req.SeatLabels); err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := s.openShowtime(ctx, req.ShowtimeID, now); err != nil {
		return nil, err
	}

	if err := s.ensureLabelsExist(ctx, req.ShowtimeID, req.SeatLabels); err != nil {
		return nil, err
	}

	until := now.Add(s.holdDuration)
	held, err := claimSeats(ctx, s.seats, req.ShowtimeID, userID, req.SeatLabels, until)
	if err != nil {
		var conflict *apperrors.ConflictError
		if errors.As(err, &conflict) {
			metrics.RecordHold(metrics.OutcomeConflict, 0)
		} else {
			metrics.RecordHold(metrics.OutcomeError, 0)
		}
		return nil, err
	}

	metrics.RecordHold(metrics.OutcomeSuccess, len(held.Acquired))
	s.side.seatsChanged(ctx, req.ShowtimeID, held.Acquired, models.SeatHeld, "hold", now)

	return &models.HoldSeatsResponse{
		ShowtimeID: req.ShowtimeID,
		SeatLabels: req.SeatLabels,
		HeldUntil:  until,
	}, nil
}

// claimSeats holds all of labels for userID until the given time, or none of
// them. On a shortfall only the seats this call acquired are handed back, so
// holds the caller already had survive.
func claimSeats(ctx context.Context, ledger SeatLedger, showtimeID, userID int64, labels []string, until time.Time) (*repository.HoldResult, error) {
	held, err := ledger.Hold(ctx, showtimeID, userID, labels, until)
	if err != nil {
		return nil, fmt.Errorf("failed to hold seats: %w", err)
	}
	if held.Held() == len(labels) {
		return held, nil
	}

	rollbackHold(ctx, ledger, showtimeID, userID, held.Acquired)
	conflicting := subtract(labels, append(held.Acquired, held.Refreshed...))

	logger.WithContext(ctx).Info("Seat hold conflict",
		"showtime_id", showtimeID,
		"requested", labels,
		"conflicting", conflicting)
	return nil, apperrors.SeatsUnavailable(conflicting)
}

// ReleaseSeats drops the caller's holds among labels. Seats held by someone
// else, booked or already available are left alone.
func (s *SeatService) ReleaseSeats(ctx context.Context, userID int64, req *models.ReleaseSeatsRequest) (*models.ReleaseSeatsResponse, error) {
	if err := validation.SeatLabels("seat_labels", req.SeatLabels); err != nil {
		return nil, err
	}

	released, err := s.seats.Release(ctx, req.ShowtimeID, userID, req.SeatLabels)
	if err != nil {
		return nil, fmt.Errorf("failed to release seats: %w", err)
	}

	s.side.seatsChanged(ctx, req.ShowtimeID, released, models.SeatAvailable, "release", s.now())

	return &models.ReleaseSeatsResponse{Released: int64(len(released))}, nil
}

// GetSeatMap returns the public seat map, served from cache when possible
func (s *SeatService) GetSeatMap(ctx context.Context, showtimeID int64) (*models.SeatMapResponse, error) {
	cached, err := s.side.cache.Get(ctx, showtimeID)
	if err != nil {
		logger.WithContext(ctx).Warn("Seat map cache read failed", "showtime_id", showtimeID, "error", err)
	}
	if cached != nil {
		metrics.RecordSeatMapCache(true)
		return cached, nil
	}
	metrics.RecordSeatMapCache(false)

	showtime, err := s.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get showtime: %w", err)
	}
	if showtime == nil {
		return nil, apperrors.ErrNotFound
	}

	seats, err := s.seats.GetByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get seats: %w", err)
	}

	seatMap := &models.SeatMapResponse{
		ShowtimeID: showtime.ID,
		MovieID:    showtime.MovieID,
		StartTime:  showtime.StartTime,
		Seats:      make([]models.SeatMapEntry, len(seats)),
	}
	for i, seat := range seats {
		seatMap.Seats[i] = models.SeatMapEntry{
			Label:     seat.Label,
			SeatType:  seat.SeatType,
			Status:    seat.Status,
			Price:     seat.Price,
			HeldUntil: seat.HeldUntil,
		}
	}

	if err := s.side.cache.Set(ctx, seatMap); err != nil {
		logger.WithContext(ctx).Warn("Seat map cache write failed", "showtime_id", showtimeID, "error", err)
	}

	return seatMap, nil
}

func (s *SeatService) openShowtime(ctx context.Context, showtimeID int64, now time.Time) (*models.Showtime, error) {
	showtime, err := s.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get showtime: %w", err)
	}
	if showtime == nil {
		return nil, apperrors.ErrNotFound
	}
	if !showtime.StartTime.After(now) {
		return nil, apperrors.Business("showtime has already started")
	}
	return showtime, nil
}

func (s *SeatService) ensureLabelsExist(ctx context.Context, showtimeID int64, labels []string) error {
	seats, err := s.seats.GetByLabels(ctx, showtimeID, labels)
	if err != nil {
		return fmt.Errorf("failed to get seats: %w", err)
	}
	if len(seats) == len(labels) {
		return nil
	}
	return apperrors.Validation("seat_labels", "unknown seats: %v", subtract(labels, seatLabels(seats)))
}

func rollbackHold(ctx context.Context, ledger SeatLedger, showtimeID, userID int64, acquired []string) {
	if len(acquired) == 0 {
		return
	}
	if _, err := ledger.Release(ctx, showtimeID, userID, acquired); err != nil {
		// The reaper reclaims these once the hold expires
		logger.WithContext(ctx).Error("Failed to roll back partial hold",
			"showtime_id", showtimeID,
			"labels", acquired,
			"error", err)
	}
}

func seatLabels(seats []models.Seat) []string {
	labels := make([]string, len(seats))
	for i, seat := range seats {
		labels[i] = seat.Label
	}
	return labels
}

// subtract returns the elements of a not present in b, keeping a's order
func subtract(a, b []string) []string {
	drop := make(map[string]struct{}, len(b))
	for _, x := range b {
		drop[x] = struct{}{}
	}

	out := []string{}
	for _, x := range a {
		if _, ok := drop[x]; !ok {
			out = append(out, x)
		}
	}
	return out
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	apperrors "cineledger/internal/errors"
	"cineledger/internal/logger"
	"cineledger/internal/models"
	"cineledger/internal/repository"
	"cineledger/internal/search"
	"cineledger/internal/validation"
)

type ShowtimeService struct {
	showtimes ShowtimeStore
	halls     HallStore
	index     ShowtimeIndex
	side      *sideEffects
	now       func() time.Time
}

func NewShowtimeService(showtimes ShowtimeStore, halls HallStore, index ShowtimeIndex, side *sideEffects, now func() time.Time) *ShowtimeService {
	return &ShowtimeService{
		showtimes: showtimes,
		halls:     halls,
		index:     index,
		side:      side,
		now:       now,
	}
}

// Create schedules a showtime and materialises its seat ledger from the hall
// template, priced per seat type.
func (s *ShowtimeService) Create(ctx context.Context, req *models.CreateShowtimeRequest) (*models.CreateShowtimeResponse, error) {
	now := s.now()
	if !req.StartTime.After(now) {
		return nil, apperrors.Validation("start_time", "must be in the future")
	}

	hall, err := s.halls.GetByID(ctx, req.HallID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hall: %w", err)
	}
	if hall == nil {
		return nil, apperrors.Validation("hall_id", "hall %d does not exist", req.HallID)
	}

	seats, err := LayoutSeats(hall.Layout, req.Prices)
	if err != nil {
		return nil, err
	}

	showtime := &models.Showtime{
		MovieID:   req.MovieID,
		HallID:    hall.ID,
		StartTime: req.StartTime,
		Seats:     seats,
	}

	if err := s.showtimes.Create(ctx, showtime); err != nil {
		return nil, fmt.Errorf("failed to create showtime: %w", err)
	}

	logger.WithContext(ctx).Info("Showtime scheduled",
		"showtime_id", showtime.ID,
		"movie_id", showtime.MovieID,
		"hall_id", showtime.HallID,
		"seats", len(seats))

	s.indexShowtime(ctx, showtime)
	s.side.publish(ctx, models.EventShowtimeScheduled, models.ShowtimeScheduledEvent{
		ShowtimeID: showtime.ID,
		MovieID:    showtime.MovieID,
		HallID:     showtime.HallID,
		StartTime:  showtime.StartTime,
		TotalSeats: len(seats),
		Timestamp:  now,
	})

	return &models.CreateShowtimeResponse{ID: showtime.ID, TotalSeats: len(seats)}, nil
}

// Delete soft-deletes a showtime that never had a booked seat
func (s *ShowtimeService) Delete(ctx context.Context, id int64) error {
	ok, err := s.showtimes.SoftDelete(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("failed to delete showtime: %w", err)
	}
	if !ok {
		showtime, err := s.showtimes.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get showtime: %w", err)
		}
		if showtime == nil {
			return apperrors.ErrNotFound
		}
		return apperrors.Business("showtime has bookings and cannot be deleted")
	}

	if s.index != nil {
		if err := s.index.DeleteShowtime(ctx, id); err != nil {
			logger.WithContext(ctx).Error("Failed to remove showtime from index", "showtime_id", id, "error", err)
		}
	}
	s.side.invalidate(ctx, id)

	return nil
}

// Search queries the showtime index, falling back to the database when the
// index is not configured or unavailable.
func (s *ShowtimeService) Search(ctx context.Context, q search.ShowtimeQuery) ([]models.ShowtimeSearchItem, error) {
	if s.index != nil {
		items, err := s.index.SearchShowtimes(ctx, q)
		if err == nil {
			return items, nil
		}
		logger.WithContext(ctx).Warn("Showtime index search failed, using database", "error", err)
	}

	showtimes, err := s.showtimes.ListActive(ctx, repository.ShowtimeFilter{
		MovieID:  q.MovieID,
		HallID:   q.HallID,
		Date:     q.Date,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list showtimes: %w", err)
	}

	items := make([]models.ShowtimeSearchItem, 0, len(showtimes))
	for _, st := range showtimes {
		if !q.From.IsZero() && st.StartTime.Before(q.From) {
			continue
		}
		items = append(items, models.ShowtimeSearchItem{
			ID:        st.ID,
			MovieID:   st.MovieID,
			HallID:    st.HallID,
			StartTime: st.StartTime,
		})
	}
	return items, nil
}

// Reindex writes every live showtime to the search index
func (s *ShowtimeService) Reindex(ctx context.Context, pageSize int) (int, error) {
	if s.index == nil {
		return 0, fmt.Errorf("showtime index is not configured")
	}
	if pageSize <= 0 {
		pageSize = 500
	}

	indexed := 0
	for page := 1; ; page++ {
		showtimes, err := s.showtimes.ListActive(ctx, repository.ShowtimeFilter{Page: page, PageSize: pageSize})
		if err != nil {
			return indexed, fmt.Errorf("failed to list showtimes: %w", err)
		}
		for i := range showtimes {
			if err := s.index.IndexShowtime(ctx, &showtimes[i]); err != nil {
				return indexed, fmt.Errorf("failed to index showtime %d: %w", showtimes[i].ID, err)
			}
			indexed++
		}
		if len(showtimes) < pageSize {
			return indexed, nil
		}
	}
}

func (s *ShowtimeService) indexShowtime(ctx context.Context, showtime *models.Showtime) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexShowtime(ctx, showtime); err != nil {
		logger.WithContext(ctx).Error("Failed to index showtime", "showtime_id", showtime.ID, "error", err)
	}
}

// LayoutSeats expands a hall template into ledger seats: row letter plus a
// 1-based seat number, priced by the row's seat type.
func LayoutSeats(layout []models.HallRow, prices map[string]int64) ([]models.Seat, error) {
	if len(layout) == 0 {
		return nil, apperrors.Validation("hall_id", "hall has no seats")
	}

	var seats []models.Seat
	seen := make(map[string]struct{})
	for _, row := range layout {
		price, ok := prices[row.SeatType]
		if !ok {
			return nil, apperrors.Validation("prices", "missing price for seat type %q", row.SeatType)
		}
		if price < 0 {
			return nil, apperrors.Validation("prices", "negative price for seat type %q", row.SeatType)
		}

		for n := 1; n <= row.Seats; n++ {
			label := row.Row + strconv.Itoa(n)
			if !validation.IsSeatLabel(label) {
				return nil, apperrors.Validation("hall_id", "hall produces invalid seat label %q", label)
			}
			if _, dup := seen[label]; dup {
				return nil, apperrors.Validation("hall_id", "hall produces duplicate seat label %q", label)
			}
			seen[label] = struct{}{}

			seats = append(seats, models.Seat{
				Label:    label,
				SeatType: row.SeatType,
				Status:   models.SeatAvailable,
				Price:    price,
			})
		}
	}

	return seats, nil
}

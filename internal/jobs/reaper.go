package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"cineledger/internal/metrics"
	"cineledger/internal/models"
	"cineledger/internal/repository"
)

type ExpiredHoldStore interface {
	ReapExpired(ctx context.Context, now time.Time) ([]repository.ExpiredSeat, error)
}

type StalePendingSweeper interface {
	FailStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

type Publisher interface {
	Publish(subject string, data any) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, showtimeIDs ...int64) error
}

// ReaperJob returns abandoned holds to the ledger and fails bookings whose
// payment never concluded. A failed tick is logged and retried on the next.
type ReaperJob struct {
	seats          ExpiredHoldStore
	bookings       StalePendingSweeper
	events         Publisher
	cache          CacheInvalidator
	interval       time.Duration
	pendingTimeout time.Duration
	now            func() time.Time
}

func NewReaperJob(seats ExpiredHoldStore, bookings StalePendingSweeper, events Publisher, cache CacheInvalidator, interval, pendingTimeout time.Duration) *ReaperJob {
	return &ReaperJob{
		seats:          seats,
		bookings:       bookings,
		events:         events,
		cache:          cache,
		interval:       interval,
		pendingTimeout: pendingTimeout,
		now:            time.Now,
	}
}

// Run ticks until ctx is cancelled. Ticks never overlap.
func (j *ReaperJob) Run(ctx context.Context) error {
	slog.Info("Starting reaper job", "interval", j.interval, "pending_timeout", j.pendingTimeout)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Tick(ctx)

	for {
		select {
		case <-ticker.C:
			j.Tick(ctx)
		case <-ctx.Done():
			slog.Info("Reaper job stopped")
			return nil
		}
	}
}

// Tick runs one sweep of expired holds and one of stale pending bookings. A
// failure in either sweep marks the whole tick as failed.
func (j *ReaperJob) Tick(ctx context.Context) {
	reaped, reapErr := j.reapHolds(ctx)
	if reapErr != nil {
		slog.Error("Failed to reap expired holds", "error", reapErr)
	}

	stale := 0
	var staleErr error
	if j.bookings != nil && j.pendingTimeout > 0 {
		stale, staleErr = j.bookings.FailStalePending(ctx, j.pendingTimeout)
		if staleErr != nil {
			slog.Error("Failed to sweep stale pending bookings", "error", staleErr)
		}
	}

	metrics.RecordReaperRun(reaped, stale, errors.Join(reapErr, staleErr))
	if reaped > 0 || stale > 0 {
		slog.Info("Reaper tick completed", "holds_released", reaped, "pending_failed", stale)
	}
}

func (j *ReaperJob) reapHolds(ctx context.Context) (int, error) {
	now := j.now()
	expired, err := j.seats.ReapExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		slog.Debug("No expired holds found")
		return 0, nil
	}

	byShowtime := make(map[int64][]string)
	for _, seat := range expired {
		byShowtime[seat.ShowtimeID] = append(byShowtime[seat.ShowtimeID], seat.Label)
	}

	showtimeIDs := make([]int64, 0, len(byShowtime))
	for id := range byShowtime {
		showtimeIDs = append(showtimeIDs, id)
	}
	sort.Slice(showtimeIDs, func(a, b int) bool { return showtimeIDs[a] < showtimeIDs[b] })

	if j.cache != nil {
		if err := j.cache.Invalidate(ctx, showtimeIDs...); err != nil {
			slog.Warn("Failed to invalidate seat map cache", "showtime_ids", showtimeIDs, "error", err)
		}
	}

	if j.events != nil {
		for _, id := range showtimeIDs {
			event := models.SeatUpdatedEvent{
				ShowtimeID: id,
				Labels:     byShowtime[id],
				Status:     models.SeatAvailable,
				Reason:     "hold_expired",
				Timestamp:  now,
			}
			if err := j.events.Publish(models.EventSeatUpdated, event); err != nil {
				slog.Error("Failed to publish seat expiry event", "showtime_id", id, "error", err)
			}
		}
	}

	return len(expired), nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"cineledger/internal/database"
	"cineledger/internal/models"
)

// SeatRepository owns the showtime seat ledger. Every write is a single
// conditional UPDATE scoped to one showtime, so concurrent callers are
// serialised by Postgres row locks and the WHERE guard is re-evaluated at
// write time.
type SeatRepository struct {
	db *database.DB
}

func NewSeatRepository(db *database.DB) *SeatRepository {
	return &SeatRepository{db: db}
}

// ExpiredSeat identifies a seat reverted by the reaper
type ExpiredSeat struct {
	ShowtimeID int64
	Label      string
}

const seatColumns = `label, seat_type, status, price, holder_id, held_until, booking_id`

func (r *SeatRepository) GetByShowtime(ctx context.Context, showtimeID int64) ([]models.Seat, error) {
	query := `SELECT ` + seatColumns + `
		FROM showtime_seats
		WHERE showtime_id = $1
		ORDER BY label`

	return querySeats(ctx, r.db, query, showtimeID)
}

func (r *SeatRepository) GetByLabels(ctx context.Context, showtimeID int64, labels []string) ([]models.Seat, error) {
	query := `SELECT ` + seatColumns + `
		FROM showtime_seats
		WHERE showtime_id = $1 AND label = ANY($2)
		ORDER BY label`

	return querySeats(ctx, r.db, query, showtimeID, pq.Array(labels))
}

// HoldResult reports what a Hold call ended up holding
type HoldResult struct {
	// Acquired were available before the call
	Acquired []string
	// Refreshed were already held by the caller; their expiry moved to until
	Refreshed []string
}

// Held counts every seat the caller holds after the call
func (h *HoldResult) Held() int {
	return len(h.Acquired) + len(h.Refreshed)
}

// Hold moves the available subset of labels to held and extends the caller's
// existing holds among labels, both in one statement. Seats held by anyone
// else or booked are left out of the result.
func (r *SeatRepository) Hold(ctx context.Context, showtimeID, userID int64, labels []string, until time.Time) (*HoldResult, error) {
	query := `
		WITH target AS (
			SELECT label, status FROM showtime_seats
			WHERE showtime_id = $1
			  AND label = ANY($2)
			  AND (status = 'available' OR (status = 'held' AND holder_id = $3))
			FOR UPDATE
		)
		UPDATE showtime_seats s
		SET status = 'held', holder_id = $3, held_until = $4, updated_at = NOW()
		FROM target
		WHERE s.showtime_id = $1 AND s.label = target.label
		RETURNING s.label, target.status = 'available'`

	rows, err := r.db.QueryContext(ctx, query, showtimeID, pq.Array(labels), userID, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &HoldResult{}
	for rows.Next() {
		var label string
		var acquired bool
		if err := rows.Scan(&label, &acquired); err != nil {
			return nil, err
		}
		if acquired {
			result.Acquired = append(result.Acquired, label)
		} else {
			result.Refreshed = append(result.Refreshed, label)
		}
	}

	return result, rows.Err()
}

// Release reverts seats held by userID; seats in any other state are untouched
func (r *SeatRepository) Release(ctx context.Context, showtimeID, userID int64, labels []string) ([]string, error) {
	query := `
		UPDATE showtime_seats
		SET status = 'available', holder_id = NULL, held_until = NULL, updated_at = NOW()
		WHERE showtime_id = $1
		  AND label = ANY($2)
		  AND status = 'held'
		  AND holder_id = $3
		RETURNING label`

	return queryLabels(ctx, r.db, query, showtimeID, pq.Array(labels), userID)
}

// ReapExpired reverts every held seat whose hold expired before now. The
// status guard is part of the UPDATE, so a seat booked after it was selected
// by an earlier read is never touched.
func (r *SeatRepository) ReapExpired(ctx context.Context, now time.Time) ([]ExpiredSeat, error) {
	query := `
		UPDATE showtime_seats
		SET status = 'available', holder_id = NULL, held_until = NULL, updated_at = NOW()
		WHERE status = 'held' AND held_until < $1
		RETURNING showtime_id, label`

	rows, err := r.db.QueryWithRetry(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to reap expired holds: %w", err)
	}
	defer rows.Close()

	var expired []ExpiredSeat
	for rows.Next() {
		var s ExpiredSeat
		if err := rows.Scan(&s.ShowtimeID, &s.Label); err != nil {
			return nil, err
		}
		expired = append(expired, s)
	}

	return expired, rows.Err()
}

// bookSeats converts seats to booked for bookingID. When allowHeld is set a
// seat held by userID also qualifies, otherwise only available seats do.
func bookSeats(ctx context.Context, q database.Querier, showtimeID, userID int64, bookingID string, labels []string, allowHeld bool) ([]string, error) {
	query := `
		UPDATE showtime_seats
		SET status = 'booked', holder_id = $3, held_until = NULL, booking_id = $4, updated_at = NOW()
		WHERE showtime_id = $1
		  AND label = ANY($2)
		  AND (status = 'available' OR ($5 AND status = 'held' AND holder_id = $3))
		RETURNING label`

	booked, err := queryLabels(ctx, q, query, showtimeID, pq.Array(labels), userID, bookingID, allowHeld)
	if err != nil {
		return nil, fmt.Errorf("failed to book seats: %w", err)
	}

	if len(booked) > 0 {
		if _, err := q.ExecContext(ctx, `UPDATE showtimes SET has_bookings = TRUE WHERE id = $1 AND NOT has_bookings`, showtimeID); err != nil {
			return nil, fmt.Errorf("failed to flag showtime as booked: %w", err)
		}
	}

	return booked, nil
}

// releaseBookedSeats reverts seats booked by bookingID
func releaseBookedSeats(ctx context.Context, q database.Querier, showtimeID int64, bookingID string, labels []string) ([]string, error) {
	query := `
		UPDATE showtime_seats
		SET status = 'available', holder_id = NULL, held_until = NULL, booking_id = NULL, updated_at = NOW()
		WHERE showtime_id = $1
		  AND label = ANY($2)
		  AND status = 'booked'
		  AND booking_id = $3
		RETURNING label`

	released, err := queryLabels(ctx, q, query, showtimeID, pq.Array(labels), bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to release booked seats: %w", err)
	}
	return released, nil
}

func insertSeats(ctx context.Context, q database.Querier, showtimeID int64, seats []models.Seat) error {
	labels := make([]string, len(seats))
	types := make([]string, len(seats))
	prices := make([]int64, len(seats))
	for i, s := range seats {
		labels[i] = s.Label
		types[i] = s.SeatType
		prices[i] = s.Price
	}

	query := `
		INSERT INTO showtime_seats (showtime_id, label, seat_type, price, status)
		SELECT $1, l, t, p, 'available'
		FROM unnest($2::text[], $3::text[], $4::bigint[]) AS s(l, t, p)`

	_, err := q.ExecContext(ctx, query, showtimeID, pq.Array(labels), pq.Array(types), pq.Array(prices))
	return err
}

func querySeats(ctx context.Context, q database.Querier, query string, args ...any) ([]models.Seat, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []models.Seat
	for rows.Next() {
		var seat models.Seat
		err := rows.Scan(
			&seat.Label,
			&seat.SeatType,
			&seat.Status,
			&seat.Price,
			&seat.HolderID,
			&seat.HeldUntil,
			&seat.BookingID,
		)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}

	return seats, rows.Err()
}

func queryLabels(ctx context.Context, q database.Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}

	return labels, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"cineledger/internal/database"
	apperrors "cineledger/internal/errors"
	"cineledger/internal/models"
)

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// SeatSwap describes an exchange or counter seat change. Release is taken
// from the old showtime, Book from the new one; both ledgers and the booking
// row are rewritten in one transaction.
type SeatSwap struct {
	BookingID      string
	UserID         int64
	OldShowtimeID  int64
	NewShowtimeID  int64
	NewMovieID     int64
	Release        []string
	Book           []string
	NewSeats       []models.SeatSnapshot
	OriginalAmount int64
	FinalAmount    int64
}

// CompletionResult reports the outcome of a payment completion
type CompletionResult struct {
	Completed      bool
	PreviousStatus string
	Booked         []string
	Missing        []string
}

const bookingColumns = `id, user_id, showtime_id, movie_id, combos, original_amount, discount_amount,
		       points_spent, points_earned, voucher_code, final_amount, payment_status, booking_status,
		       is_used, transaction_id, paid_at, created_at, updated_at`

func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	combos, err := json.Marshal(nonNilCombos(booking.Combos))
	if err != nil {
		return fmt.Errorf("failed to marshal combos: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO bookings (id, user_id, showtime_id, movie_id, combos, original_amount, discount_amount,
			                      points_spent, voucher_code, final_amount, payment_status, booking_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING created_at, updated_at`

		err := tx.QueryRowContext(ctx, query,
			booking.ID,
			booking.UserID,
			booking.ShowtimeID,
			booking.MovieID,
			combos,
			booking.OriginalAmount,
			booking.DiscountAmount,
			booking.PointsSpent,
			booking.VoucherCode,
			booking.FinalAmount,
			booking.PaymentStatus,
			booking.BookingStatus,
		).Scan(&booking.CreatedAt, &booking.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}

		return insertBookingSeats(ctx, tx, booking.ID, booking.Seats)
	})
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seats, err := r.GetSeats(ctx, id)
	if err != nil {
		return nil, err
	}
	booking.Seats = seats

	return booking, nil
}

func (r *BookingRepository) GetByUserID(ctx context.Context, userID int64) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range bookings {
		seats, err := r.GetSeats(ctx, bookings[i].ID)
		if err != nil {
			return nil, err
		}
		bookings[i].Seats = seats
	}

	return bookings, nil
}

func (r *BookingRepository) GetSeats(ctx context.Context, bookingID string) ([]models.SeatSnapshot, error) {
	query := `
		SELECT label, price
		FROM booking_seats
		WHERE booking_id = $1
		ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := []models.SeatSnapshot{}
	for rows.Next() {
		var seat models.SeatSnapshot
		if err := rows.Scan(&seat.Label, &seat.Price); err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}

	return seats, rows.Err()
}

// CommittedSeats returns the labels already committed to another active
// booking of the showtime: paid ones, or pending ones owned by someone else.
func (r *BookingRepository) CommittedSeats(ctx context.Context, showtimeID, userID int64, labels []string) ([]string, error) {
	query := `
		SELECT DISTINCT bs.label
		FROM booking_seats bs
		JOIN bookings b ON b.id = bs.booking_id
		WHERE b.showtime_id = $1
		  AND b.booking_status = 'active'
		  AND (b.payment_status = 'completed' OR (b.payment_status = 'pending' AND b.user_id <> $3))
		  AND bs.label = ANY($2)
		ORDER BY bs.label`

	return queryLabels(ctx, r.db, query, showtimeID, pq.Array(labels), userID)
}

// CompletePayment marks the booking paid and books its seats. Only a booking
// still pending (or failed by the stale sweep) transitions; a replayed
// callback sees Completed=false and must not apply side effects again.
func (r *BookingRepository) CompletePayment(ctx context.Context, booking *models.Booking, transactionID string, pointsEarned int64, paidAt time.Time) (*CompletionResult, error) {
	result := &CompletionResult{}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE bookings b
			SET payment_status = 'completed', transaction_id = $2, points_earned = $3, paid_at = $4, updated_at = NOW()
			FROM (SELECT id, payment_status FROM bookings WHERE id = $1 FOR UPDATE) prev
			WHERE b.id = prev.id
			  AND b.booking_status = 'active'
			  AND b.payment_status IN ('pending', 'failed')
			RETURNING prev.payment_status`

		err := tx.QueryRowContext(ctx, query, booking.ID, transactionID, pointsEarned, paidAt).Scan(&result.PreviousStatus)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to complete booking: %w", err)
		}
		result.Completed = true

		labels := booking.SeatLabels()
		booked, err := bookSeats(ctx, tx, booking.ShowtimeID, booking.UserID, booking.ID, labels, true)
		if err != nil {
			return err
		}
		result.Booked = booked
		result.Missing = difference(labels, booked)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// MarkFailed moves a pending booking to failed
func (r *BookingRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'failed', updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'`

	return execAffected(ctx, r.db, query, id)
}

// Discard cancels a pending booking whose payment never started
func (r *BookingRepository) Discard(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'failed', booking_status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'`

	return execAffected(ctx, r.db, query, id)
}

// Cancel cancels a paid, unused booking and returns its seats to the ledger
// in the same transaction.
func (r *BookingRepository) Cancel(ctx context.Context, booking *models.Booking) ([]string, error) {
	var released []string

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE bookings
			SET booking_status = 'cancelled', payment_status = 'awaiting_refund', updated_at = NOW()
			WHERE id = $1
			  AND booking_status = 'active'
			  AND payment_status = 'completed'
			  AND NOT is_used`

		ok, err := execAffected(ctx, tx, query, booking.ID)
		if err != nil {
			return fmt.Errorf("failed to cancel booking: %w", err)
		}
		if !ok {
			return apperrors.Business("booking can no longer be cancelled")
		}

		released, err = releaseBookedSeats(ctx, tx, booking.ShowtimeID, booking.ID, booking.SeatLabels())
		return err
	})
	if err != nil {
		return nil, err
	}

	return released, nil
}

// SwapSeats books the new seats, releases the old ones and rewrites the
// booking in one transaction. Any seat that cannot be booked aborts the
// whole swap with a ConflictError naming it.
func (r *BookingRepository) SwapSeats(ctx context.Context, swap SeatSwap) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if len(swap.Book) > 0 {
			booked, err := bookSeats(ctx, tx, swap.NewShowtimeID, swap.UserID, swap.BookingID, swap.Book, false)
			if err != nil {
				return err
			}
			if missing := difference(swap.Book, booked); len(missing) > 0 {
				return apperrors.SeatsUnavailable(missing)
			}
		}

		if len(swap.Release) > 0 {
			released, err := releaseBookedSeats(ctx, tx, swap.OldShowtimeID, swap.BookingID, swap.Release)
			if err != nil {
				return err
			}
			if missing := difference(swap.Release, released); len(missing) > 0 {
				return apperrors.SeatsUnavailable(missing)
			}
		}

		query := `
			UPDATE bookings
			SET showtime_id = $2, movie_id = $3, original_amount = $4, final_amount = $5, updated_at = NOW()
			WHERE id = $1 AND booking_status = 'active'`

		ok, err := execAffected(ctx, tx, query, swap.BookingID, swap.NewShowtimeID, swap.NewMovieID, swap.OriginalAmount, swap.FinalAmount)
		if err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		if !ok {
			return apperrors.Business("booking is no longer active")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = $1`, swap.BookingID); err != nil {
			return fmt.Errorf("failed to clear booking seats: %w", err)
		}
		return insertBookingSeats(ctx, tx, swap.BookingID, swap.NewSeats)
	})
}

// AddCombos appends line items and raises both totals by amount
func (r *BookingRepository) AddCombos(ctx context.Context, id string, combos []models.ComboItem, amount int64) (bool, error) {
	payload, err := json.Marshal(combos)
	if err != nil {
		return false, fmt.Errorf("failed to marshal combos: %w", err)
	}

	query := `
		UPDATE bookings
		SET combos = combos || $2::jsonb,
		    original_amount = original_amount + $3,
		    final_amount = final_amount + $3,
		    updated_at = NOW()
		WHERE id = $1 AND booking_status = 'active'`

	return execAffected(ctx, r.db, query, id, payload, amount)
}

// MarkUsed flags a paid booking as consumed at the door
func (r *BookingRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE bookings
		SET is_used = TRUE, updated_at = NOW()
		WHERE id = $1
		  AND booking_status = 'active'
		  AND payment_status = 'completed'
		  AND NOT is_used`

	return execAffected(ctx, r.db, query, id)
}

// FailStalePending marks bookings pending since before cutoff as failed and
// returns them with the fields needed to undo their points and voucher use.
func (r *BookingRepository) FailStalePending(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'failed', updated_at = NOW()
		WHERE payment_status = 'pending' AND created_at < $1
		RETURNING id, user_id, showtime_id, points_spent, voucher_code`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failed []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.PointsSpent, &b.VoucherCode); err != nil {
			return nil, err
		}
		b.PaymentStatus = models.PaymentFailed
		failed = append(failed, b)
	}

	return failed, rows.Err()
}

func insertBookingSeats(ctx context.Context, q database.Querier, bookingID string, seats []models.SeatSnapshot) error {
	labels := make([]string, len(seats))
	prices := make([]int64, len(seats))
	for i, s := range seats {
		labels[i] = s.Label
		prices[i] = s.Price
	}

	query := `
		INSERT INTO booking_seats (booking_id, label, price, position)
		SELECT $1, l, p, pos
		FROM unnest($2::text[], $3::bigint[]) WITH ORDINALITY AS s(l, p, pos)`

	if _, err := q.ExecContext(ctx, query, bookingID, pq.Array(labels), pq.Array(prices)); err != nil {
		return fmt.Errorf("failed to insert booking seats: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	booking := &models.Booking{}
	var combos []byte

	err := row.Scan(
		&booking.ID,
		&booking.UserID,
		&booking.ShowtimeID,
		&booking.MovieID,
		&combos,
		&booking.OriginalAmount,
		&booking.DiscountAmount,
		&booking.PointsSpent,
		&booking.PointsEarned,
		&booking.VoucherCode,
		&booking.FinalAmount,
		&booking.PaymentStatus,
		&booking.BookingStatus,
		&booking.IsUsed,
		&booking.TransactionID,
		&booking.PaidAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(combos, &booking.Combos); err != nil {
		return nil, fmt.Errorf("failed to decode combos: %w", err)
	}

	return booking, nil
}

func execAffected(ctx context.Context, q database.Querier, query string, args ...any) (bool, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nonNilCombos(combos []models.ComboItem) []models.ComboItem {
	if combos == nil {
		return []models.ComboItem{}
	}
	return combos
}

// difference returns the elements of want missing from got
func difference(want, got []string) []string {
	seen := make(map[string]struct{}, len(got))
	for _, g := range got {
		seen[g] = struct{}{}
	}

	var missing []string
	for _, w := range want {
		if _, ok := seen[w]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}

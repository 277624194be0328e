package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cineledger/internal/database"
	"cineledger/internal/models"
)

type ShowtimeRepository struct {
	db *database.DB
}

func NewShowtimeRepository(db *database.DB) *ShowtimeRepository {
	return &ShowtimeRepository{db: db}
}

// ShowtimeFilter narrows ListActive; zero values are ignored
type ShowtimeFilter struct {
	MovieID  int64
	HallID   int64
	Date     string
	Page     int
	PageSize int
}

const showtimeColumns = `id, movie_id, hall_id, start_time, has_bookings, deleted_at, created_at`

// Create inserts the showtime together with its full seat ledger
func (r *ShowtimeRepository) Create(ctx context.Context, showtime *models.Showtime) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO showtimes (movie_id, hall_id, start_time)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`

		err := tx.QueryRowContext(ctx, query, showtime.MovieID, showtime.HallID, showtime.StartTime).
			Scan(&showtime.ID, &showtime.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert showtime: %w", err)
		}

		if err := insertSeats(ctx, tx, showtime.ID, showtime.Seats); err != nil {
			return fmt.Errorf("failed to insert seats: %w", err)
		}
		return nil
	})
}

// GetByID returns a live (not soft-deleted) showtime without its seats
func (r *ShowtimeRepository) GetByID(ctx context.Context, id int64) (*models.Showtime, error) {
	query := `SELECT ` + showtimeColumns + ` FROM showtimes WHERE id = $1 AND deleted_at IS NULL`

	showtime, err := scanShowtime(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return showtime, nil
}

// SoftDelete hides a showtime that has never been booked
func (r *ShowtimeRepository) SoftDelete(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE showtimes
		SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL AND NOT has_bookings`

	return execAffected(ctx, r.db, query, id, at)
}

func (r *ShowtimeRepository) ListActive(ctx context.Context, filter ShowtimeFilter) ([]models.Showtime, error) {
	var args []any
	argIndex := 1

	sqlQuery := `SELECT ` + showtimeColumns + `
		FROM showtimes
		WHERE deleted_at IS NULL`

	if filter.MovieID > 0 {
		sqlQuery += fmt.Sprintf(" AND movie_id = $%d", argIndex)
		args = append(args, filter.MovieID)
		argIndex++
	}

	if filter.HallID > 0 {
		sqlQuery += fmt.Sprintf(" AND hall_id = $%d", argIndex)
		args = append(args, filter.HallID)
		argIndex++
	}

	if filter.Date != "" {
		sqlQuery += fmt.Sprintf(" AND DATE(start_time) = $%d", argIndex)
		args = append(args, filter.Date)
		argIndex++
	}

	sqlQuery += " ORDER BY start_time ASC, id ASC"

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		sqlQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, filter.PageSize, offset)
	}

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var showtimes []models.Showtime
	for rows.Next() {
		showtime, err := scanShowtime(rows)
		if err != nil {
			return nil, err
		}
		showtimes = append(showtimes, *showtime)
	}

	return showtimes, rows.Err()
}

func scanShowtime(row rowScanner) (*models.Showtime, error) {
	showtime := &models.Showtime{}
	err := row.Scan(
		&showtime.ID,
		&showtime.MovieID,
		&showtime.HallID,
		&showtime.StartTime,
		&showtime.HasBookings,
		&showtime.DeletedAt,
		&showtime.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return showtime, nil
}

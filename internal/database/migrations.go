package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createHallsTable,
		createShowtimesTable,
		createShowtimeSeatsTable,
		createShowtimeSeatsHeldIndex,
		createVouchersTable,
		createBookingsTable,
		createBookingSeatsTable,
		createBookingsPendingIndex,
		createNotificationsTable,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    user_id SERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    full_name VARCHAR(200) NOT NULL DEFAULT '',
    role VARCHAR(20) NOT NULL DEFAULT 'user',
    points BIGINT NOT NULL DEFAULT 0,
    registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (role IN ('user', 'admin')),
    CHECK (points >= 0)
);`

const createHallsTable = `
CREATE TABLE IF NOT EXISTS halls (
    id SERIAL PRIMARY KEY,
    cinema_id INTEGER NOT NULL,
    name VARCHAR(100) NOT NULL,
    layout JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createShowtimesTable = `
CREATE TABLE IF NOT EXISTS showtimes (
    id SERIAL PRIMARY KEY,
    movie_id INTEGER NOT NULL,
    hall_id INTEGER NOT NULL REFERENCES halls(id),
    start_time TIMESTAMPTZ NOT NULL,
    has_bookings BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Seats are rows scoped by showtime so that a single UPDATE ... WHERE
// label = ANY(...) AND status = ... is the unit of atomicity.
const createShowtimeSeatsTable = `
CREATE TABLE IF NOT EXISTS showtime_seats (
    showtime_id INTEGER NOT NULL REFERENCES showtimes(id) ON DELETE CASCADE,
    label VARCHAR(8) NOT NULL,
    seat_type VARCHAR(20) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'available',
    price BIGINT NOT NULL,
    holder_id INTEGER REFERENCES users(user_id),
    held_until TIMESTAMPTZ,
    booking_id UUID,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (showtime_id, label),
    CHECK (status IN ('available', 'held', 'booked')),
    CHECK (status <> 'available' OR (holder_id IS NULL AND held_until IS NULL AND booking_id IS NULL)),
    CHECK (status <> 'held' OR (holder_id IS NOT NULL AND held_until IS NOT NULL)),
    CHECK (status <> 'booked' OR (held_until IS NULL AND booking_id IS NOT NULL))
);`

const createShowtimeSeatsHeldIndex = `
CREATE INDEX IF NOT EXISTS showtime_seats_held_until_idx
ON showtime_seats (held_until) WHERE status = 'held';`

const createVouchersTable = `
CREATE TABLE IF NOT EXISTS vouchers (
    code VARCHAR(50) PRIMARY KEY,
    discount_type VARCHAR(10) NOT NULL,
    discount_value BIGINT NOT NULL,
    max_discount BIGINT,
    min_order BIGINT NOT NULL DEFAULT 0,
    usage_limit BIGINT NOT NULL DEFAULT 0,
    used_count BIGINT NOT NULL DEFAULT 0,
    expires_at TIMESTAMPTZ,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,

    CHECK (discount_type IN ('fixed', 'percent'))
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES users(user_id),
    showtime_id INTEGER NOT NULL REFERENCES showtimes(id),
    movie_id INTEGER NOT NULL,
    combos JSONB NOT NULL DEFAULT '[]',
    original_amount BIGINT NOT NULL,
    discount_amount BIGINT NOT NULL DEFAULT 0,
    points_spent BIGINT NOT NULL DEFAULT 0,
    points_earned BIGINT NOT NULL DEFAULT 0,
    voucher_code VARCHAR(50),
    final_amount BIGINT NOT NULL,
    payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
    booking_status VARCHAR(20) NOT NULL DEFAULT 'active',
    is_used BOOLEAN NOT NULL DEFAULT FALSE,
    transaction_id VARCHAR(255),
    paid_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (payment_status IN ('pending', 'completed', 'failed', 'awaiting_refund')),
    CHECK (booking_status IN ('active', 'cancelled'))
);`

const createBookingSeatsTable = `
CREATE TABLE IF NOT EXISTS booking_seats (
    booking_id UUID NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
    label VARCHAR(8) NOT NULL,
    price BIGINT NOT NULL,
    position INTEGER NOT NULL,

    PRIMARY KEY (booking_id, label)
);`

const createBookingsPendingIndex = `
CREATE INDEX IF NOT EXISTS bookings_pending_created_idx
ON bookings (created_at) WHERE payment_status = 'pending';`

const createNotificationsTable = `
CREATE TABLE IF NOT EXISTS notifications (
    id SERIAL PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES users(user_id),
    kind VARCHAR(50) NOT NULL,
    title VARCHAR(255) NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

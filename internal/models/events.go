package models

import "time"

// NATS subjects
const (
	EventSeatUpdated       = "seat.updated"
	EventBookingCreated    = "booking.created"
	EventBookingCompleted  = "booking.completed"
	EventBookingFailed     = "booking.failed"
	EventBookingCancelled  = "booking.cancelled"
	EventBookingExchanged  = "booking.exchanged"
	EventShowtimeScheduled = "showtime.scheduled"
)

// SeatUpdatedEvent is broadcast to seat-map onlookers after any ledger write
type SeatUpdatedEvent struct {
	ShowtimeID int64     `json:"showtime_id"`
	Labels     []string  `json:"labels"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// BookingCreatedEvent is published once a pending booking has a payment attempt
type BookingCreatedEvent struct {
	BookingID   string    `json:"booking_id"`
	ShowtimeID  int64     `json:"showtime_id"`
	UserID      int64     `json:"user_id"`
	FinalAmount int64     `json:"final_amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// BookingCompletedEvent is published after a verified successful payment
type BookingCompletedEvent struct {
	BookingID     string    `json:"booking_id"`
	ShowtimeID    int64     `json:"showtime_id"`
	UserID        int64     `json:"user_id"`
	Seats         []string  `json:"seats"`
	FinalAmount   int64     `json:"final_amount"`
	PointsEarned  int64     `json:"points_earned"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// BookingFailedEvent is published after a verified failed payment
type BookingFailedEvent struct {
	BookingID  string    `json:"booking_id"`
	ShowtimeID int64     `json:"showtime_id"`
	UserID     int64     `json:"user_id"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// BookingCancelledEvent is published after a user cancellation
type BookingCancelledEvent struct {
	BookingID      string    `json:"booking_id"`
	ShowtimeID     int64     `json:"showtime_id"`
	UserID         int64     `json:"user_id"`
	NetPointChange int64     `json:"net_point_change"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// BookingExchangedEvent is published after an exchange or a counter seat change
type BookingExchangedEvent struct {
	BookingID     string    `json:"booking_id"`
	UserID        int64     `json:"user_id"`
	OldShowtimeID int64     `json:"old_showtime_id"`
	NewShowtimeID int64     `json:"new_showtime_id"`
	OldSeats      []string  `json:"old_seats"`
	NewSeats      []string  `json:"new_seats"`
	AtCounter     bool      `json:"at_counter"`
	Timestamp     time.Time `json:"timestamp"`
}

// ShowtimeScheduledEvent is published when an admin schedules a showtime
type ShowtimeScheduledEvent struct {
	ShowtimeID int64     `json:"showtime_id"`
	MovieID    int64     `json:"movie_id"`
	HallID     int64     `json:"hall_id"`
	StartTime  time.Time `json:"start_time"`
	TotalSeats int       `json:"total_seats"`
	Timestamp  time.Time `json:"timestamp"`
}

package models

import (
	"time"
)

// Seat statuses in the showtime ledger
const (
	SeatAvailable = "available"
	SeatHeld      = "held"
	SeatBooked    = "booked"
)

// Booking payment statuses
const (
	PaymentPending        = "pending"
	PaymentCompleted      = "completed"
	PaymentFailed         = "failed"
	PaymentAwaitingRefund = "awaiting_refund"
)

// Booking statuses
const (
	BookingActive    = "active"
	BookingCancelled = "cancelled"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a customer account; only the loyalty balance is owned here
type User struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         string    `json:"role" db:"role"`
	Points       int64     `json:"points" db:"points"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
}

// HallRow describes one row of a hall seat template
type HallRow struct {
	Row      string `json:"row"`
	Seats    int    `json:"seats"`
	SeatType string `json:"seat_type"`
}

// Hall is the seat template a showtime ledger is materialised from
type Hall struct {
	ID        int64     `json:"id" db:"id"`
	CinemaID  int64     `json:"cinema_id" db:"cinema_id"`
	Name      string    `json:"name" db:"name"`
	Layout    []HallRow `json:"layout" db:"layout"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Showtime is one scheduled screening together with its seat ledger
type Showtime struct {
	ID          int64      `json:"id" db:"id"`
	MovieID     int64      `json:"movie_id" db:"movie_id"`
	HallID      int64      `json:"hall_id" db:"hall_id"`
	StartTime   time.Time  `json:"start_time" db:"start_time"`
	HasBookings bool       `json:"has_bookings" db:"has_bookings"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	Seats       []Seat     `json:"seats,omitempty"` // Filled separately
}

// Seat is one element of a showtime ledger
type Seat struct {
	Label     string     `json:"label" db:"label"`
	SeatType  string     `json:"seat_type" db:"seat_type"`
	Status    string     `json:"status" db:"status"`
	Price     int64      `json:"price" db:"price"`
	HolderID  *int64     `json:"holder_id,omitempty" db:"holder_id"`
	HeldUntil *time.Time `json:"held_until,omitempty" db:"held_until"`
	BookingID *string    `json:"booking_id,omitempty" db:"booking_id"`
}

// SeatSnapshot is the label/price pair recorded on a booking
type SeatSnapshot struct {
	Label string `json:"label"`
	Price int64  `json:"price"`
}

// ComboItem is a concession line item; Price is the unit price
type ComboItem struct {
	ComboID  int64  `json:"combo_id" binding:"required"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity" binding:"required,min=1"`
	Price    int64  `json:"price" binding:"min=0"`
}

// LineTotal returns unit price times quantity
func (c ComboItem) LineTotal() int64 {
	return c.Price * c.Quantity
}

// Booking is a purchase of seats (and combos) for one showtime
type Booking struct {
	ID             string         `json:"id" db:"id"`
	UserID         int64          `json:"user_id" db:"user_id"`
	ShowtimeID     int64          `json:"showtime_id" db:"showtime_id"`
	MovieID        int64          `json:"movie_id" db:"movie_id"`
	Seats          []SeatSnapshot `json:"seats" db:"seats"`
	Combos         []ComboItem    `json:"combos" db:"combos"`
	OriginalAmount int64          `json:"original_amount" db:"original_amount"`
	DiscountAmount int64          `json:"discount_amount" db:"discount_amount"`
	PointsSpent    int64          `json:"points_spent" db:"points_spent"`
	PointsEarned   int64          `json:"points_earned" db:"points_earned"`
	VoucherCode    *string        `json:"voucher_code,omitempty" db:"voucher_code"`
	FinalAmount    int64          `json:"final_amount" db:"final_amount"`
	PaymentStatus  string         `json:"payment_status" db:"payment_status"`
	BookingStatus  string         `json:"booking_status" db:"booking_status"`
	IsUsed         bool           `json:"is_used" db:"is_used"`
	TransactionID  *string        `json:"transaction_id,omitempty" db:"transaction_id"`
	PaidAt         *time.Time     `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// SeatLabels returns the labels of the booking's seat snapshot
func (b *Booking) SeatLabels() []string {
	labels := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		labels[i] = s.Label
	}
	return labels
}

// Voucher discount types
const (
	DiscountFixed   = "fixed"
	DiscountPercent = "percent"
)

// Voucher is a discount code redeemable against a booking
type Voucher struct {
	Code          string     `json:"code" db:"code"`
	DiscountType  string     `json:"discount_type" db:"discount_type"`
	DiscountValue int64      `json:"discount_value" db:"discount_value"`
	MaxDiscount   *int64     `json:"max_discount,omitempty" db:"max_discount"`
	MinOrder      int64      `json:"min_order" db:"min_order"`
	UsageLimit    int64      `json:"usage_limit" db:"usage_limit"`
	UsedCount     int64      `json:"used_count" db:"used_count"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	IsActive      bool       `json:"is_active" db:"is_active"`
}

// Notification is a user-facing message written by the consumers service
type Notification struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Kind      string    `json:"kind" db:"kind"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

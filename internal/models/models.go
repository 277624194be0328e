package models

import (
	"time"
)

// HoldSeatsRequest - POST /api/seats/hold
type HoldSeatsRequest struct {
	ShowtimeID int64    `json:"showtime_id" binding:"required"`
	SeatLabels []string `json:"seat_labels" binding:"required,min=1,dive,seatlabel"`
}

// HoldSeatsResponse - ответ на удержание мест
type HoldSeatsResponse struct {
	ShowtimeID int64     `json:"showtime_id"`
	SeatLabels []string  `json:"seat_labels"`
	HeldUntil  time.Time `json:"held_until"`
}

// ReleaseSeatsRequest - POST /api/seats/release
type ReleaseSeatsRequest struct {
	ShowtimeID int64    `json:"showtime_id" binding:"required"`
	SeatLabels []string `json:"seat_labels" binding:"required,min=1,dive,seatlabel"`
}

// ReleaseSeatsResponse reports how many of the caller's holds were dropped
type ReleaseSeatsResponse struct {
	Released int64 `json:"released"`
}

// InitializePaymentRequest - POST /api/bookings/initialize-payment
type InitializePaymentRequest struct {
	ShowtimeID    int64       `json:"showtime_id" binding:"required"`
	MovieID       int64       `json:"movie_id"`
	Seats         []string    `json:"seats" binding:"required,min=1,dive,seatlabel"`
	Combos        []ComboItem `json:"combos" binding:"omitempty,dive"`
	Amount        int64       `json:"amount" binding:"min=0"`
	PointsToSpend int64       `json:"points_to_spend" binding:"min=0"`
	VoucherCode   string      `json:"voucher_code"`
}

// InitializePaymentResponse carries the redirect target for the payment gateway
type InitializePaymentResponse struct {
	BookingID      string `json:"booking_id"`
	PaymentURL     string `json:"payment_url"`
	Amount         int64  `json:"amount"`
	OriginalAmount int64  `json:"original_amount"`
	Discount       int64  `json:"discount"`
	PointsSpent    int64  `json:"points_spent"`
}

// PaymentCallback is the gateway notification, accepted as JSON or query string
type PaymentCallback struct {
	PaymentID     string `json:"paymentId" form:"paymentId"`
	OrderID       string `json:"orderId" form:"orderId"`
	Status        string `json:"status" form:"status"`
	Amount        int64  `json:"amount" form:"amount"`
	TransactionID string `json:"transactionId" form:"transactionId"`
	Token         string `json:"token" form:"token"`
}

// PaymentCallbackResponse is always answered with 200
type PaymentCallbackResponse struct {
	ResultCode string   `json:"result_code"`
	Message    string   `json:"message"`
	Invoice    *Invoice `json:"invoice,omitempty"`
}

// Invoice is the user-facing summary of a completed booking
type Invoice struct {
	BookingID      string         `json:"booking_id"`
	TransactionID  string         `json:"transaction_id"`
	ShowtimeID     int64          `json:"showtime_id"`
	MovieID        int64          `json:"movie_id"`
	StartTime      time.Time      `json:"start_time"`
	Seats          []SeatSnapshot `json:"seats"`
	Combos         []ComboItem    `json:"combos"`
	OriginalAmount int64          `json:"original_amount"`
	DiscountAmount int64          `json:"discount_amount"`
	PointsSpent    int64          `json:"points_spent"`
	FinalAmount    int64          `json:"final_amount"`
	PointsEarned   int64          `json:"points_earned"`
	PaidAt         time.Time      `json:"paid_at"`
}

// CancelBookingResponse - PUT /api/bookings/:id/cancel
type CancelBookingResponse struct {
	RefundedPoints  int64    `json:"refunded_points"`
	ReclaimedPoints int64    `json:"reclaimed_points"`
	NetPointChange  int64    `json:"net_point_change"`
	Booking         *Booking `json:"booking"`
}

// ExchangeTicketRequest - PUT /api/bookings/:id/exchange
type ExchangeTicketRequest struct {
	NewShowtimeID int64    `json:"new_showtime_id" binding:"required"`
	NewSeats      []string `json:"new_seats" binding:"required,min=1,dive,seatlabel"`
}

// ChangeSeatsRequest - POST /api/admin/bookings/:id/change-seats
type ChangeSeatsRequest struct {
	OldSeats []string `json:"old_seats" binding:"required,min=1,dive,seatlabel"`
	NewSeats []string `json:"new_seats" binding:"required,min=1,dive,seatlabel"`
}

// AddCombosRequest - POST /api/admin/bookings/:id/combos
type AddCombosRequest struct {
	Combos []ComboItem `json:"combos" binding:"required,min=1,dive"`
}

// CreateShowtimeRequest - POST /api/admin/showtimes
type CreateShowtimeRequest struct {
	MovieID   int64            `json:"movie_id" binding:"required"`
	HallID    int64            `json:"hall_id" binding:"required"`
	StartTime time.Time        `json:"start_time" binding:"required"`
	Prices    map[string]int64 `json:"prices" binding:"required,min=1"`
}

// CreateShowtimeResponse - ответ при создании сеанса
type CreateShowtimeResponse struct {
	ID         int64 `json:"id"`
	TotalSeats int   `json:"total_seats"`
}

// SeatMapResponse - GET /api/showtimes/:id/seats
type SeatMapResponse struct {
	ShowtimeID int64          `json:"showtime_id"`
	MovieID    int64          `json:"movie_id"`
	StartTime  time.Time      `json:"start_time"`
	Seats      []SeatMapEntry `json:"seats"`
}

// SeatMapEntry is the public view of a ledger seat; holder identity is not exposed
type SeatMapEntry struct {
	Label     string     `json:"label"`
	SeatType  string     `json:"seat_type"`
	Status    string     `json:"status"`
	Price     int64      `json:"price"`
	HeldUntil *time.Time `json:"held_until,omitempty"`
}

// ShowtimeSearchItem is one hit of the showtime index
type ShowtimeSearchItem struct {
	ID        int64     `json:"id"`
	MovieID   int64     `json:"movie_id"`
	HallID    int64     `json:"hall_id"`
	StartTime time.Time `json:"start_time"`
}

// ListBookingsResponseItem - элемент списка бронирований
type ListBookingsResponseItem struct {
	ID            string         `json:"id"`
	ShowtimeID    int64          `json:"showtime_id"`
	Seats         []SeatSnapshot `json:"seats"`
	FinalAmount   int64          `json:"final_amount"`
	PaymentStatus string         `json:"payment_status"`
	BookingStatus string         `json:"booking_status"`
}

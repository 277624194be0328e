package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cineledger/internal/config"
	apperrors "cineledger/internal/errors"
	"cineledger/internal/logger"
	"cineledger/internal/metrics"
	"cineledger/internal/models"
	"cineledger/internal/repository"
	"cineledger/internal/validation"
)

type BookingService struct {
	seats     SeatLedger
	bookings  BookingStore
	users     UserStore
	vouchers  VoucherStore
	showtimes ShowtimeStore
	payment   PaymentProvider
	side      *sideEffects
	cfg       config.BookingConfig
	now       func() time.Time
}

func NewBookingService(deps Deps, side *sideEffects, cfg config.BookingConfig) *BookingService {
	return &BookingService{
		seats:     deps.Seats,
		bookings:  deps.Bookings,
		users:     deps.Users,
		vouchers:  deps.Vouchers,
		showtimes: deps.Showtimes,
		payment:   deps.Payment,
		side:      side,
		cfg:       cfg,
		now:       deps.Now,
	}
}

// InitializePayment holds the seats for the caller, prices the order, records
// a pending booking and starts a payment for it. Points and voucher usage are
// only consumed once the gateway has accepted the payment.
func (s *BookingService) InitializePayment(ctx context.Context, userID int64, req *models.InitializePaymentRequest) (*models.InitializePaymentResponse, error) {
	if err := validation.SeatLabels("seats", req.Seats); err != nil {
		return nil, err
	}

	now := s.now()
	showtime, err := s.showtimes.GetByID(ctx, req.ShowtimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get showtime: %w", err)
	}
	if showtime == nil {
		return nil, apperrors.ErrNotFound
	}
	if !showtime.StartTime.After(now) {
		return nil, apperrors.Business("showtime has already started")
	}
	if req.MovieID != 0 && req.MovieID != showtime.MovieID {
		return nil, apperrors.Validation("movie_id", "showtime %d does not screen movie %d", showtime.ID, req.MovieID)
	}

	seats, err := s.seats.GetByLabels(ctx, req.ShowtimeID, req.Seats)
	if err != nil {
		return nil, fmt.Errorf("failed to get seats: %w", err)
	}
	if len(seats) != len(req.Seats) {
		return nil, apperrors.Validation("seats", "unknown seats: %v", subtract(req.Seats, seatLabels(seats)))
	}

	// Seats are claimed with the same conditional hold HoldSeats uses, so two
	// callers can never both get a pending booking on one free seat.
	held, err := claimSeats(ctx, s.seats, req.ShowtimeID, userID, req.Seats, now.Add(s.cfg.HoldDuration))
	if err != nil {
		var conflict *apperrors.ConflictError
		if errors.As(err, &conflict) {
			metrics.RecordBookingOperation("initialize", metrics.OutcomeConflict)
		}
		return nil, err
	}
	initiated := false
	defer func() {
		if !initiated {
			rollbackHold(ctx, s.seats, req.ShowtimeID, userID, held.Acquired)
		}
	}()

	committed, err := s.bookings.CommittedSeats(ctx, req.ShowtimeID, userID, req.Seats)
	if err != nil {
		return nil, fmt.Errorf("failed to check active bookings: %w", err)
	}
	if len(committed) > 0 {
		metrics.RecordBookingOperation("initialize", metrics.OutcomeConflict)
		return nil, apperrors.SeatsUnavailable(committed)
	}

	subtotal := orderSubtotal(seats, req.Combos)
	if req.Amount != subtotal {
		return nil, apperrors.AmountMismatch("amount does not match seat and combo prices", subtotal, req.Amount)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}

	q, err := s.priceOrder(ctx, user, subtotal, req.PointsToSpend, req.VoucherCode, now)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:             uuid.New().String(),
		UserID:         userID,
		ShowtimeID:     showtime.ID,
		MovieID:        showtime.MovieID,
		Seats:          snapshots(seats, req.Seats),
		Combos:         req.Combos,
		OriginalAmount: q.OriginalAmount,
		DiscountAmount: q.DiscountAmount,
		PointsSpent:    q.PointsSpent,
		VoucherCode:    q.VoucherCode,
		FinalAmount:    q.FinalAmount,
		PaymentStatus:  models.PaymentPending,
		BookingStatus:  models.BookingActive,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	log := logger.WithContext(ctx).With("booking_id", booking.ID, "showtime_id", booking.ShowtimeID)

	orderID := NewOrderID(booking.ID, now)
	description := fmt.Sprintf("Showtime %d, seats %v", showtime.ID, req.Seats)
	payment, err := s.payment.Initiate(ctx, booking.FinalAmount, orderID, description)
	if err != nil {
		if _, derr := s.bookings.Discard(ctx, booking.ID); derr != nil {
			log.Error("Failed to discard booking after payment initiation failure", "error", derr)
		}

		if errors.Is(err, apperrors.ErrPaymentRejected) {
			log.Warn("Payment initiation rejected", "error", err)
			metrics.RecordBookingOperation("initialize", metrics.OutcomeRejected)
			return nil, err
		}

		log.Error("Payment initiation failed", "error", err)
		metrics.RecordBookingOperation("initialize", metrics.OutcomeError)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPaymentUnavailable, err)
	}

	initiated = true
	s.consumeDiscounts(ctx, booking)
	s.side.seatsChanged(ctx, booking.ShowtimeID, held.Acquired, models.SeatHeld, "hold", now)

	log.Info("Payment initiated",
		"order_id", orderID,
		"payment_id", payment.PaymentID,
		"final_amount", booking.FinalAmount)
	metrics.RecordBookingOperation("initialize", metrics.OutcomeSuccess)

	s.side.publish(ctx, models.EventBookingCreated, models.BookingCreatedEvent{
		BookingID:   booking.ID,
		ShowtimeID:  booking.ShowtimeID,
		UserID:      booking.UserID,
		FinalAmount: booking.FinalAmount,
		Timestamp:   now,
	})

	return &models.InitializePaymentResponse{
		BookingID:      booking.ID,
		PaymentURL:     payment.PaymentURL,
		Amount:         booking.FinalAmount,
		OriginalAmount: booking.OriginalAmount,
		Discount:       booking.DiscountAmount,
		PointsSpent:    booking.PointsSpent,
	}, nil
}

// CancelBooking cancels a paid booking ahead of the cutoff, returns its seats
// and reverses the net loyalty effect of the purchase.
func (s *BookingService) CancelBooking(ctx context.Context, userID int64, bookingID string) (*models.CancelBookingResponse, error) {
	booking, _, err := s.eligibleBooking(ctx, userID, bookingID, "cancelled")
	if err != nil {
		return nil, err
	}

	released, err := s.bookings.Cancel(ctx, booking)
	if err != nil {
		metrics.RecordBookingOperation("cancel", metrics.OutcomeError)
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	log := logger.WithContext(ctx).With("booking_id", booking.ID)
	if missing := subtract(booking.SeatLabels(), released); len(missing) > 0 {
		log.Warn("Cancelled booking had seats no longer booked under it", "labels", missing)
	}

	net := booking.PointsSpent - booking.PointsEarned
	if net != 0 {
		if _, err := s.users.AdjustPoints(ctx, booking.UserID, net); err != nil {
			log.Error("Failed to reverse loyalty points", "delta", net, "error", err)
		}
	}
	s.releaseVoucher(ctx, booking)

	now := s.now()
	booking.BookingStatus = models.BookingCancelled
	booking.PaymentStatus = models.PaymentAwaitingRefund
	booking.UpdatedAt = now

	metrics.RecordBookingOperation("cancel", metrics.OutcomeSuccess)
	s.side.seatsChanged(ctx, booking.ShowtimeID, released, models.SeatAvailable, "cancellation", now)
	s.side.publish(ctx, models.EventBookingCancelled, models.BookingCancelledEvent{
		BookingID:      booking.ID,
		ShowtimeID:     booking.ShowtimeID,
		UserID:         booking.UserID,
		NetPointChange: net,
		Reason:         "user_cancelled",
		Timestamp:      now,
	})

	return &models.CancelBookingResponse{
		RefundedPoints:  booking.PointsSpent,
		ReclaimedPoints: booking.PointsEarned,
		NetPointChange:  net,
		Booking:         booking,
	}, nil
}

// ExchangeTicket moves a paid booking to other seats, possibly in another
// showtime, provided the new seats cost exactly the original amount.
func (s *BookingService) ExchangeTicket(ctx context.Context, userID int64, bookingID string, req *models.ExchangeTicketRequest) (*models.Booking, error) {
	if err := validation.SeatLabels("new_seats", req.NewSeats); err != nil {
		return nil, err
	}

	booking, _, err := s.eligibleBooking(ctx, userID, bookingID, "exchanged")
	if err != nil {
		return nil, err
	}

	now := s.now()
	target, err := s.showtimes.GetByID(ctx, req.NewShowtimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get showtime: %w", err)
	}
	if target == nil {
		return nil, apperrors.ErrNotFound
	}
	if !target.StartTime.After(now) {
		return nil, apperrors.Business("new showtime has already started")
	}

	newSeats, err := s.pricedSeats(ctx, target.ID, req.NewSeats, "new_seats")
	if err != nil {
		return nil, err
	}

	if total := snapshotTotal(newSeats); total != booking.OriginalAmount {
		metrics.RecordBookingOperation("exchange", metrics.OutcomeConflict)
		return nil, apperrors.AmountMismatch(
			"new seats must cost exactly the original amount; cancel and rebook instead",
			booking.OriginalAmount, total)
	}

	swap := newSwap(booking, target, newSeats)
	swap.OriginalAmount = booking.OriginalAmount
	swap.FinalAmount = booking.FinalAmount

	return s.applySwap(ctx, booking, swap, false, "exchange")
}

// ChangeSeatsAtCounter lets staff swap a booking's seats within its showtime.
// The claimed old seats must be exactly the booking's current seats.
func (s *BookingService) ChangeSeatsAtCounter(ctx context.Context, bookingID string, req *models.ChangeSeatsRequest) (*models.Booking, error) {
	if err := validation.SeatLabels("new_seats", req.NewSeats); err != nil {
		return nil, err
	}

	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.BookingStatus == models.BookingCancelled {
		return nil, apperrors.Business("booking is cancelled")
	}
	if booking.PaymentStatus != models.PaymentCompleted {
		return nil, apperrors.Business("booking is not paid")
	}

	current := booking.SeatLabels()
	if !validation.SameLabelSet(req.OldSeats, current) {
		metrics.RecordBookingOperation("counter_change", metrics.OutcomeConflict)
		mismatch := append(subtract(req.OldSeats, current), subtract(current, req.OldSeats)...)
		return nil, &apperrors.ConflictError{
			Message:          "old seats do not match the booking",
			ConflictingSeats: mismatch,
		}
	}

	showtime, err := s.showtimes.GetByID(ctx, booking.ShowtimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get showtime: %w", err)
	}
	if showtime == nil {
		return nil, apperrors.ErrNotFound
	}

	newSeats, err := s.pricedSeats(ctx, showtime.ID, req.NewSeats, "new_seats")
	if err != nil {
		return nil, err
	}

	delta := snapshotTotal(newSeats) - snapshotTotal(booking.Seats)
	swap := newSwap(booking, showtime, newSeats)
	swap.OriginalAmount = booking.OriginalAmount + delta
	swap.FinalAmount = max(booking.FinalAmount+delta, 0)

	return s.applySwap(ctx, booking, swap, true, "counter_change")
}

// AddCombosAtCounter appends concession items to a booking that is not cancelled
func (s *BookingService) AddCombosAtCounter(ctx context.Context, bookingID string, req *models.AddCombosRequest) (*models.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.BookingStatus == models.BookingCancelled {
		return nil, apperrors.Business("booking is cancelled")
	}

	ok, err := s.bookings.AddCombos(ctx, booking.ID, req.Combos, combosTotal(req.Combos))
	if err != nil {
		return nil, fmt.Errorf("failed to add combos: %w", err)
	}
	if !ok {
		return nil, apperrors.Business("booking is cancelled")
	}

	metrics.RecordBookingOperation("counter_combos", metrics.OutcomeSuccess)
	return s.getBooking(ctx, booking.ID)
}

// MarkUsed flags a paid ticket as admitted
func (s *BookingService) MarkUsed(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	ok, err := s.bookings.MarkUsed(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark booking used: %w", err)
	}
	if !ok {
		return nil, apperrors.Business("only paid, unused, active bookings can be admitted")
	}

	booking.IsUsed = true
	return booking, nil
}

func (s *BookingService) List(ctx context.Context, userID int64) ([]models.ListBookingsResponseItem, error) {
	bookings, err := s.bookings.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}

	result := make([]models.ListBookingsResponseItem, len(bookings))
	for i, booking := range bookings {
		result[i] = models.ListBookingsResponseItem{
			ID:            booking.ID,
			ShowtimeID:    booking.ShowtimeID,
			Seats:         booking.Seats,
			FinalAmount:   booking.FinalAmount,
			PaymentStatus: booking.PaymentStatus,
			BookingStatus: booking.BookingStatus,
		}
	}

	return result, nil
}

// Get returns a booking visible to the caller; staff see every booking
func (s *BookingService) Get(ctx context.Context, userID int64, isAdmin bool, bookingID string) (*models.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && booking.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return booking, nil
}

// FailStalePending fails bookings whose payment never concluded and gives
// back the points and voucher use they consumed. Returns how many failed.
func (s *BookingService) FailStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	failed, err := s.bookings.FailStalePending(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep pending bookings: %w", err)
	}

	for i := range failed {
		booking := &failed[i]
		s.refundDiscounts(ctx, booking)
		logger.WithContext(ctx).Warn("Pending booking timed out", "booking_id", booking.ID, "user_id", booking.UserID)
		s.side.publish(ctx, models.EventBookingFailed, models.BookingFailedEvent{
			BookingID:  booking.ID,
			ShowtimeID: booking.ShowtimeID,
			UserID:     booking.UserID,
			Reason:     "payment_timeout",
			Timestamp:  s.now(),
		})
	}

	return len(failed), nil
}

// eligibleBooking loads a booking the caller may cancel or exchange along
// with its showtime: owned, paid, active, unused and before the cutoff.
func (s *BookingService) eligibleBooking(ctx context.Context, userID int64, bookingID, action string) (*models.Booking, *models.Showtime, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.UserID != userID {
		return nil, nil, apperrors.ErrForbidden
	}
	if booking.PaymentStatus != models.PaymentCompleted {
		return nil, nil, apperrors.Business("only paid bookings can be %s", action)
	}
	if booking.BookingStatus == models.BookingCancelled {
		return nil, nil, apperrors.Business("booking is already cancelled")
	}
	if booking.IsUsed {
		return nil, nil, apperrors.Business("ticket has already been used")
	}

	showtime, err := s.showtimes.GetByID(ctx, booking.ShowtimeID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get showtime: %w", err)
	}
	if showtime == nil {
		return nil, nil, apperrors.ErrNotFound
	}

	if !showtime.StartTime.After(s.now().Add(s.cfg.CancellationCutoff)) {
		return nil, nil, apperrors.Business("bookings can only be %s more than %s before the showtime", action, s.cfg.CancellationCutoff)
	}

	return booking, showtime, nil
}

func (s *BookingService) getBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return nil, apperrors.ErrNotFound
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrNotFound
	}
	return booking, nil
}

// pricedSeats snapshots the requested seats with their ledger prices
func (s *BookingService) pricedSeats(ctx context.Context, showtimeID int64, labels []string, field string) ([]models.SeatSnapshot, error) {
	seats, err := s.seats.GetByLabels(ctx, showtimeID, labels)
	if err != nil {
		return nil, fmt.Errorf("failed to get seats: %w", err)
	}
	if len(seats) != len(labels) {
		return nil, apperrors.Validation(field, "unknown seats: %v", subtract(labels, seatLabels(seats)))
	}
	return snapshots(seats, labels), nil
}

func (s *BookingService) applySwap(ctx context.Context, booking *models.Booking, swap repository.SeatSwap, atCounter bool, operation string) (*models.Booking, error) {
	if err := s.bookings.SwapSeats(ctx, swap); err != nil {
		var conflict *apperrors.ConflictError
		if errors.As(err, &conflict) {
			metrics.RecordBookingOperation(operation, metrics.OutcomeConflict)
			return nil, err
		}
		metrics.RecordBookingOperation(operation, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to swap seats: %w", err)
	}

	now := s.now()
	metrics.RecordBookingOperation(operation, metrics.OutcomeSuccess)
	s.side.seatsChanged(ctx, swap.OldShowtimeID, swap.Release, models.SeatAvailable, operation, now)
	s.side.seatsChanged(ctx, swap.NewShowtimeID, swap.Book, models.SeatBooked, operation, now)
	s.side.publish(ctx, models.EventBookingExchanged, models.BookingExchangedEvent{
		BookingID:     booking.ID,
		UserID:        booking.UserID,
		OldShowtimeID: swap.OldShowtimeID,
		NewShowtimeID: swap.NewShowtimeID,
		OldSeats:      booking.SeatLabels(),
		NewSeats:      snapshotLabels(swap.NewSeats),
		AtCounter:     atCounter,
		Timestamp:     now,
	})

	return s.getBooking(ctx, booking.ID)
}

// consumeDiscounts debits points and voucher usage for an accepted payment
func (s *BookingService) consumeDiscounts(ctx context.Context, booking *models.Booking) {
	log := logger.WithContext(ctx).With("booking_id", booking.ID)

	if booking.PointsSpent > 0 {
		ok, err := s.users.DebitPoints(ctx, booking.UserID, booking.PointsSpent)
		if err != nil {
			log.Error("Failed to debit loyalty points", "points", booking.PointsSpent, "error", err)
		} else if !ok {
			log.Error("Loyalty balance no longer covers points spent", "points", booking.PointsSpent)
		}
	}

	if booking.VoucherCode != nil {
		ok, err := s.vouchers.IncrementUsage(ctx, *booking.VoucherCode)
		if err != nil {
			log.Error("Failed to record voucher usage", "voucher", *booking.VoucherCode, "error", err)
		} else if !ok {
			log.Warn("Voucher usage limit reached after pricing", "voucher", *booking.VoucherCode)
		}
	}
}

// refundDiscounts gives back what consumeDiscounts took
func (s *BookingService) refundDiscounts(ctx context.Context, booking *models.Booking) {
	if booking.PointsSpent > 0 {
		if _, err := s.users.AdjustPoints(ctx, booking.UserID, booking.PointsSpent); err != nil {
			logger.WithContext(ctx).Error("Failed to refund loyalty points",
				"booking_id", booking.ID, "points", booking.PointsSpent, "error", err)
		}
	}
	s.releaseVoucher(ctx, booking)
}

func (s *BookingService) releaseVoucher(ctx context.Context, booking *models.Booking) {
	if booking.VoucherCode == nil {
		return
	}
	if _, err := s.vouchers.DecrementUsage(ctx, *booking.VoucherCode); err != nil {
		logger.WithContext(ctx).Error("Failed to release voucher usage",
			"booking_id", booking.ID, "voucher", *booking.VoucherCode, "error", err)
	}
}

// newSwap computes which labels move. Within one showtime only the seats
// that actually change are released and booked.
func newSwap(booking *models.Booking, target *models.Showtime, newSeats []models.SeatSnapshot) repository.SeatSwap {
	oldLabels := booking.SeatLabels()
	newLabels := snapshotLabels(newSeats)

	swap := repository.SeatSwap{
		BookingID:     booking.ID,
		UserID:        booking.UserID,
		OldShowtimeID: booking.ShowtimeID,
		NewShowtimeID: target.ID,
		NewMovieID:    target.MovieID,
		Release:       oldLabels,
		Book:          newLabels,
		NewSeats:      newSeats,
	}

	if booking.ShowtimeID == target.ID {
		swap.Release = subtract(oldLabels, newLabels)
		swap.Book = subtract(newLabels, oldLabels)
	}

	return swap
}

// snapshots orders ledger seats as requested
func snapshots(seats []models.Seat, order []string) []models.SeatSnapshot {
	prices := make(map[string]int64, len(seats))
	for _, seat := range seats {
		prices[seat.Label] = seat.Price
	}

	out := make([]models.SeatSnapshot, 0, len(order))
	for _, label := range order {
		out = append(out, models.SeatSnapshot{Label: label, Price: prices[label]})
	}
	return out
}

func snapshotLabels(seats []models.SeatSnapshot) []string {
	labels := make([]string, len(seats))
	for i, s := range seats {
		labels[i] = s.Label
	}
	return labels
}

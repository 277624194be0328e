package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cineledger/internal/errors"
	"cineledger/internal/external"
	"cineledger/internal/models"
)

func welcomeVoucher() models.Voucher {
	maxDiscount := int64(50000)
	return models.Voucher{
		Code:          "WELCOME20",
		DiscountType:  models.DiscountPercent,
		DiscountValue: 20,
		MaxDiscount:   &maxDiscount,
		IsActive:      true,
	}
}

func TestInitializePaymentPricesAndConsumesDiscounts(t *testing.T) {
	h := newHarness(t)
	h.store.addVoucher(welcomeVoucher())
	h.hold(t, alice, "A1", "A2")

	resp := h.initialize(t, alice, models.InitializePaymentRequest{
		Seats:         []string{"A1", "A2"},
		Amount:        200000,
		PointsToSpend: 10000,
		VoucherCode:   "WELCOME20",
	})

	assert.Equal(t, int64(200000), resp.OriginalAmount)
	assert.Equal(t, int64(40000), resp.Discount)
	assert.Equal(t, int64(10000), resp.PointsSpent)
	assert.Equal(t, int64(150000), resp.Amount)
	assert.NotEmpty(t, resp.PaymentURL)

	booking := h.store.booking(resp.BookingID)
	assert.Equal(t, models.PaymentPending, booking.PaymentStatus)
	assert.Equal(t, []string{"A1", "A2"}, booking.SeatLabels())

	assert.Equal(t, int64(40000), h.store.points(alice))
	assert.Equal(t, int64(1), h.store.voucherUses("WELCOME20"))
	assert.Equal(t, 1, h.events.count(models.EventBookingCreated))
}

func TestInitializePaymentIncludesCombosInSubtotal(t *testing.T) {
	h := newHarness(t)
	h.hold(t, alice, "A1")

	resp := h.initialize(t, alice, models.InitializePaymentRequest{
		Seats:  []string{"A1"},
		Combos: []models.ComboItem{{ComboID: 1, Name: "Popcorn", Quantity: 2, Price: 30000}},
		Amount: 160000,
	})

	assert.Equal(t, int64(160000), resp.Amount)
}

func TestInitializePaymentRejectsAmountMismatch(t *testing.T) {
	h := newHarness(t)
	h.hold(t, alice, "A1", "A2")

	_, err := h.services.Bookings.InitializePayment(context.Background(), alice, &models.InitializePaymentRequest{
		ShowtimeID: showtimeID,
		Seats:      []string{"A1", "A2"},
		Amount:     190000,
	})

	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(200000), *conflict.Expected)
	assert.Equal(t, int64(190000), *conflict.Actual)
	assert.Empty(t, h.payment.initiated)
}

func TestInitializePaymentRejectsSeatsHeldByOthers(t *testing.T) {
	h := newHarness(t)
	h.hold(t, bob, "A1")

	_, err := h.services.Bookings.InitializePayment(context.Background(), alice, &models.InitializePaymentRequest{
		ShowtimeID: showtimeID,
		Seats:      []string{"A1", "A2"},
		Amount:     200000,
	})

	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"A1"}, conflict.ConflictingSeats)
	assert.Equal(t, models.SeatAvailable, h.store.seat(showtimeID, "A2").Status)
	assert.Equal(t, bob, *h.store.seat(showtimeID, "A1").HolderID)
	assert.Empty(t, h.payment.initiated)
}

func TestInitializePaymentClaimsFreeSeats(t *testing.T) {
	h := newHarness(t)

	resp := h.initialize(t, alice, models.InitializePaymentRequest{Seats: []string{"A3"}, Amount: 100000})

	seat := h.store.seat(showtimeID, "A3")
	assert.Equal(t, models.SeatHeld, seat.Status)
	assert.Equal(t, alice, *seat.HolderID)
	assert.Equal(t, h.clock.Now().Add(testBookingConfig.HoldDuration), *seat.HeldUntil)

	_, err := h.services.Seats.HoldSeats(context.Background(), bob, &models.HoldSeatsRequest{
		ShowtimeID: showtimeID,
		SeatLabels: []string{"A3"},
	})
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)

	require.Equal(t, ResultSuccess, h.callback(resp.BookingID, external.CallbackStatusSuccess, 100000, validToken).ResultCode)
	assert.Equal(t, models.SeatBooked, h.store.seat(showtimeID, "A3").Status)
}

func TestInitializePaymentConcurrentCallersOnlyOneGetsTheSeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const callers = 20
	for id := int64(3); id < 3+callers; id++ {
		h.store.addUser(id, 0)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := map[int64]string{}

	for id := int64(3); id < 3+callers; id++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			resp, err := h.services.Bookings.InitializePayment(ctx, userID, &models.InitializePaymentRequest{
				ShowtimeID: showtimeID,
				Seats:      []string{"A3"},
				Amount:     100000,
			})
			if err == nil {
				mu.Lock()
				winners[userID] = resp.BookingID
				mu.Unlock()
				return
			}
			var conflict *apperrors.ConflictError
			if assert.ErrorAs(t, err, &conflict) {
				assert.Equal(t, []string{"A3"}, conflict.ConflictingSeats)
			}
		}(id)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Len(t, h.payment.initiated, 1)

	for winner, bookingID := range winners {
		seat := h.store.seat(showtimeID, "A3")
		assert.Equal(t, models.SeatHeld, seat.Status)
		assert.Equal(t, winner, *seat.HolderID)

		res := h.callback(bookingID, external.CallbackStatusSuccess, 100000, validToken)
		require.Equal(t, ResultSuccess, res.ResultCode)
		require.NotNil(t, res.Invoice)
		assert.Len(t, res.Invoice.Seats, 1)
		assert.Equal(t, bookingID, *h.store.seat(showtimeID, "A3").BookingID)
	}
}

func TestInitializePaymentProviderFailureDiscardsBooking(t *testing.T) {
	tests := []struct {
		name    string
		provErr error
		want    error
	}{
		{"rejected", apperrors.ErrPaymentRejected, apperrors.ErrPaymentRejected},
		{"unavailable", errors.New("dial tcp: i/o timeout"), apperrors.ErrPaymentUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.payment.err = tt.provErr
			h.hold(t, alice, "A1")

			_, err := h.services.Bookings.InitializePayment(context.Background(), alice, &models.InitializePaymentRequest{
				ShowtimeID:    showtimeID,
				Seats:         []string{"A1"},
				Amount:        100000,
				PointsToSpend: 5000,
			})
			require.ErrorIs(t, err, tt.want)

			bookings, err := memBookings{h.store}.GetByUserID(context.Background(), alice)
			require.NoError(t, err)
			require.Len(t, bookings, 1)
			assert.Equal(t, models.BookingCancelled, bookings[0].BookingStatus)
			assert.Equal(t, models.PaymentFailed, bookings[0].PaymentStatus)
			assert.Equal(t, int64(50000), h.store.points(alice), "points are not consumed")
		})
	}
}

func TestPaymentCallbackCompletesOnceAndReplaysAreNoOps(t *testing.T) {
	h := newHarness(t)
	h.hold(t, alice, "A1", "A2")
	resp := h.initialize(t, alice, models.InitializePaymentRequest{
		Seats:         []string{"A1", "A2"},
		Amount:        200000,
		PointsToSpend: 500,
	})
	require.Equal(t, int64(199500), resp.Amount)

	res := h.callback(resp.BookingID, external.CallbackStatusSuccess, 199500, validToken)
	require.Equal(t, ResultSuccess, res.ResultCode)
	require.NotNil(t, res.Invoice)
	assert.Equal(t, int64(19950), res.Invoice.PointsEarned)
	assert.Equal(t, int64(199500), res.Invoice.FinalAmount)

	booking := h.store.booking(resp.BookingID)
	assert.Equal(t, models.PaymentCompleted, booking.PaymentStatus)
	for _, label := range []string{"A1", "A2"} {
		seat := h.store.seat(showtimeID, label)
		assert.Equal(t, models.SeatBooked, seat.Status)
		assert.Equal(t, resp.BookingID, *seat.BookingID)
	}
	assert.Equal(t, int64(50000-500+19950), h.store.points(alice))

	replay := h.callback(resp.BookingID, external.CallbackStatusSuccess, 199500, validToken)
	assert.Equal(t, ResultAlreadyProcessed, replay.ResultCode)
	assert.NotNil(t, replay.Invoice)

	late := h.callback(resp.BookingID, external.CallbackStatusFailed, 199500, validToken)
	assert.Equal(t, ResultAlreadyProcessed, late.ResultCode)

	assert.Equal(t, int64(50000-500+19950), h.store.points(alice))
	assert.Equal(t, 1, h.events.count(models.EventBookingCompleted))
	assert.Equal(t, models.PaymentCompleted, h.store.booking(resp.BookingID).PaymentStatus)
}

func TestPaymentCallbackFailures(t *testing.T) {
	tests := []struct {
		name   string
		status string
		amount int64
		token  string
	}{
		{"declined", external.CallbackStatusFailed, 100000, validToken},
		{"unverified success", external.CallbackStatusSuccess, 100000, "forged"},
		{"missing token", external.CallbackStatusSuccess, 100000, ""},
		{"amount differs", external.CallbackStatusSuccess, 99999, validToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.addVoucher(welcomeVoucher())
			h.hold(t, alice, "A1")
			resp := h.initialize(t, alice, models.InitializePaymentRequest{
				Seats:         []string{"A1"},
				Amount:        100000,
				PointsToSpend: 0,
			})

			res := h.callback(resp.BookingID, tt.status, tt.amount, tt.token)

			assert.Equal(t, ResultFailed, res.ResultCode)
			assert.Nil(t, res.Invoice)
			assert.Equal(t, models.PaymentFailed, h.store.booking(resp.BookingID).PaymentStatus)
			assert.Equal(t, int64(50000), h.store.points(alice))
			assert.Equal(t, 1, h.events.count(models.EventBookingFailed))

			seat := h.store.seat(showtimeID, "A1")
			assert.Equal(t, models.SeatHeld, seat.Status, "hold runs out on its own")
			assert.Equal(t, alice, *seat.HolderID)

			h.clock.Advance(testBookingConfig.HoldDuration + time.Second)
			_, err := memSeats{h.store}.ReapExpired(context.Background(), h.clock.Now())
			require.NoError(t, err)
			assert.Equal(t, models.SeatAvailable, h.store.seat(showtimeID, "A1").Status)
		})
	}
}

func TestPaymentCallbackFailureKeepsSiblingBookingSeats(t *testing.T) {
	h := newHarness(t)
	h.hold(t, alice, "A1")
	first := h.initialize(t, alice, models.InitializePaymentRequest{Seats: []string{"A1"}, Amount: 100000})
	second := h.initialize(t, alice, models.InitializePaymentRequest{Seats: []string{"A1"}, Amount: 100000})

	res := h.callback(first.BookingID, external.CallbackStatusFailed, 100000, validToken)
	require.Equal(t, ResultFailed, res.ResultCode)

	_, err := h.services.Seats.HoldSeats(context.Background(), bob, &models.HoldSeatsRequest{
		ShowtimeID: showtimeID,
		SeatLabels: []string{"A1"},
	})
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict, "A1 stays held for the other pending booking")

	res = h.callback(second.BookingID, external.CallbackStatusSuccess, 100000, validToken)
	require.Equal(t, ResultSuccess, res.ResultCode)
	seat := h.store.seat(showtimeID, "A1")
	assert.Equal(t, models.SeatBooked, seat.Status)
	assert.Equal(t, second.BookingID, *seat.BookingID)
}

func TestPaymentCallbackFailureRefundsDiscounts(t *testing.T) {
	h := newHarness(t)
	h.store.addVoucher(welcomeVoucher())
	h.hold(t, alice, "A1", "A2")
	resp := h.initialize(t, alice, models.InitializePaymentRequest{
		Seats:         []string{"A1", "A2"},
		Amount:        200000,
		PointsToSpend: 10000,
		VoucherCode:   "WELCOME20",
	})
	require.Equal(t, int64(40000), h.store.points(alice))

	res := h.callback(resp.BookingID, external.CallbackStatusFailed, resp.Amount, validToken)

	require.Equal(t, ResultFailed, res.ResultCode)
	assert.Equal(t, int64(50000), h.store.points(alice))
	assert.Equal(t, int64(0), h.store.voucherUses("WELCOME20"))
}

func TestPaymentCallbackUnknownOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.services.Bookings.HandlePaymentCallback(ctx, &models.PaymentCallback{OrderID: "garbage", Token: validToken})
	assert.Equal(t, ResultInvalidOrder, res.ResultCode)

	res = h.services.Bookings.HandlePaymentCallback(ctx, &models.PaymentCallback{
		OrderID: NewOrderID(uuid.New().String(), h.clock.Now()),
		Status:  external.CallbackStatusSuccess,
		Token:   validToken,
	})
	assert.Equal(t, ResultNotFound, res.ResultCode)
}

func TestLateSuccessAfterHoldWasReapedNeverDoubleBooks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.hold(t, alice, "A1")
	resp := h.initialize(t, alice, models.InitializePaymentRequest{Seats: []string{"A1"}, Amount: 100000})

	h.clock.Advance(testBookingConfig.HoldDuration + time.Minute)
	_, err := memSeats{h.store}.ReapExpired(ctx, h.clock.Now())
	require.NoError(t, err)
	h.hold(t, bob, "A1")

	res := h.callback(resp.BookingID, external.CallbackStatusSuccess, 100000, validToken)
	assert.Equal(t, ResultSuccess, res.ResultCode)

	seat := h.store.seat(showtimeID, "A1")
	assert.Equal(t, models.SeatHeld, seat.Status)
	assert.Equal(t, bob, *seat.HolderID)
	assert.Nil(t, seat.BookingID)
}

func TestFailStalePendingRefundsAndLateSuccessReconsumes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.addVoucher(models.Voucher{Code: "MINUS10K", DiscountType: models.DiscountFixed, DiscountValue: 10000, IsActive: true})

	h.hold(t, alice, "A1")
	resp := h.initialize(t, alice, models.InitializePaymentRequest{
		Seats:         []string{"A1"},
		Amount:        100000,
		PointsToSpend: 1000,
		VoucherCode:   "MINUS10K",
	})
	require.Equal(t, int64(89000), resp.Amount)
	require.Equal(t, int64(49000), h.store.points(alice))

	h.clock.Advance(31 * time.Minute)
	n, err := h.services.Bookings.FailStalePending(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.PaymentFailed, h.store.booking(resp.BookingID).PaymentStatus)
	assert.Equal(t, int64(50000), h.store.points(alice))
	assert.Equal(t, int64(0), h.store.voucherUses("MINUS10K"))

	res := h.callback(resp.BookingID, external.CallbackStatusSuccess, 89000, validToken)
	require.Equal(t, ResultSuccess, res.ResultCode)
	assert.Equal(t, int64(50000-1000+8900), h.store.points(alice))
	assert.Equal(t, int64(1), h.store.voucherUses("MINUS10K"))
	assert.Equal(t, models.SeatBooked, h.store.seat(showtimeID, "A1").Status)

	n, err = h.services.Bookings.FailStalePending(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCancelBookingReversesNetPoints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.hold(t, alice, "A1", "A2")
	init := h.initialize(t, alice, models.InitializePaymentRequest{
		Seats:         []string{"A1", "A2"},
		Amount:        200000,
		PointsToSpend: 500,
	})
	require.Equal(t, ResultSuccess, h.callback(init.BookingID, external.CallbackStatusSuccess, init.Amount, validToken).ResultCode)
	require.Equal(t, int64(69450), h.store.points(alice))

	resp, err := h.services.Bookings.CancelBooking(ctx, alice, init.BookingID)
	require.NoError(t, err)

	assert.Equal(t, int64(500), resp.RefundedPoints)
	assert.Equal(t, int64(19950), resp.ReclaimedPoints)
	assert.Equal(t, int64(-19450), resp.NetPointChange)
	assert.Equal(t, int64(50000), h.store.points(alice))

	booking := h.store.booking(init.BookingID)
	assert.Equal(t, models.BookingCancelled, booking.BookingStatus)
	assert.Equal(t, models.PaymentAwaitingRefund, booking.PaymentStatus)
	assert.Equal(t, models.SeatAvailable, h.store.seat(showtimeID, "A1").Status)
	assert.Equal(t, models.SeatAvailable, h.store.seat(showtimeID, "A2").Status)
	assert.Equal(t, 1, h.events.count(models.EventBookingCancelled))

	_, err = h.services.Bookings.CancelBooking(ctx, alice, init.BookingID)
	var businessErr *apperrors.BusinessError
	assert.ErrorAs(t, err, &businessErr)
}

func TestCancelBookingClampsBalanceAtZero(t *testing.T) {
	h := newHarness(t)
	bookingID := h.book(t, alice, "A1")

	// Earned points already spent elsewhere
	h.store.mu.Lock()
	h.store.users[alice].Points = 1000
	h.store.mu.Unlock()

	resp, err := h.services.Bookings.CancelBooking(context.Background(), alice, bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(-10000), resp.NetPointChange)
	assert.Equal(t, int64(0), h.store.points(alice))
}

func TestCancelBookingRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookingID := h.book(t, alice, "A1")

	_, err := h.services.Bookings.CancelBooking(ctx, bob, bookingID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = h.services.Bookings.CancelBooking(ctx, alice, "not-a-uuid")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	h.clock.Advance(47 * time.Hour)
	_, err = h.services.Bookings.CancelBooking(ctx, alice, bookingID)
	var businessErr *apperrors.BusinessError
	assert.ErrorAs(t, err, &businessErr)
	assert.Equal(t, models.SeatBooked, h.store.seat(showtimeID, "A1").Status)
}

func TestCancelBookingRejectsUsedTicket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookingID := h.book(t, alice, "A1")

	_, err := h.services.Bookings.MarkUsed(ctx, bookingID)
	require.NoError(t, err)

	_, err = h.services.Bookings.MarkUsed(ctx, bookingID)
	var businessErr *apperrors.BusinessError
	assert.ErrorAs(t, err, &businessErr)

	_, err = h.services.Bookings.CancelBooking(ctx, alice, bookingID)
	assert.ErrorAs(t, err, &businessErr)
}

func TestExchangeTicketConservesPrice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookingID := h.book(t, alice, "A1")

	_, err := h.services.Bookings.ExchangeTicket(ctx, alice, bookingID, &models.ExchangeTicketRequest{
		NewShowtimeID: showtimeID,
		NewSeats:      []string{"B1"},
	})
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(100000), *conflict.Expected)
	assert.Equal(t, int64(150000), *conflict.Actual)
	assert.Equal(t, models.SeatBooked, h.store.seat(showtimeID, "A1").Status)
	assert.Equal(t, models.SeatAvailable, h.store.seat(showtimeID, "B1").Status)

	booking, err := h.services.Bookings.ExchangeTicket(ctx, alice, bookingID, &models.ExchangeTicketRequest{
		NewShowtimeID: showtimeID,
		NewSeats:      []string{"A3"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A3"}, booking.SeatLabels())
	assert.Equal(t, models.SeatAvailable, h.store.seat(showtimeID, "A1").Status)
	assert.Equal(t, models.SeatBooked, h.store.seat(showtimeID, "A3").Status)

	booking, err = h.services.Bookings.ExchangeTicket(ctx, alice, bookingID, &models.ExchangeTicketRequest{
		NewShowtimeID: otherShowtime,
		NewSeats:      []string{"A1"},
	})
	require.NoError(t, err)
	assert.Equal(t, otherShowtime, booking.ShowtimeID)
	assert.Equal(t, models.SeatAvailable, h.store.seat(showtimeID, "A3").Status)
	assert.Equal(t, models.SeatBooked, h.store.seat(otherShowtime, "A1").Status)
	assert.Equal(t, int64(100000), booking.OriginalAmount)
}

func TestExchangeTicketRejectsCheaperSeats(t *testing.T) {
	h := newHarness(t)
	bookingID := h.book(t, alice, "B1")

	_, err := h.services.Bookings.ExchangeTicket(context.Background(), alice, bookingID, &models.ExchangeTicketRequest{
		NewShowtimeID: otherShowtime,
		NewSeats:      []string{"A1"},
	})
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(150000), *conflict.Expected)
	assert.Equal(t, int64(100000), *conflict.Actual)

	assert.Equal(t, models.SeatBooked, h.store.seat(showtimeID, "B1").Status)
	assert.Equal(t, models.SeatAvailable, h.store.seat(otherShowtime, "A1").Status)
	stored := h.store.booking(bookingID)
	assert.Equal(t, []string{"B1"}, stored.SeatLabels())
}

func TestExchangeTicketTargetSeatTaken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookingID := h.book(t, alice, "A1")
	h.book(t, bob, "A2")

	_, err := h.services.Bookings.ExchangeTicket(ctx, alice, bookingID, &models.ExchangeTicketRequest{
		NewShowtimeID: showtimeID,
		NewSeats:      []string{"A2"},
	})

	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"A2"}, conflict.ConflictingSeats)
	assert.Equal(t, bookingID, *h.store.seat(showtimeID, "A1").BookingID)
}

func TestChangeSeatsAtCounter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookingID := h.book(t, alice, "A1", "A2")

	_, err := h.services.Bookings.ChangeSeatsAtCounter(ctx, bookingID, &models.ChangeSeatsRequest{
		OldSeats: []string{"A1", "A3"},
		NewSeats: []string{"B1", "B2"},
	})
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ElementsMatch(t, []string{"A2", "A3"}, conflict.ConflictingSeats)

	booking, err := h.services.Bookings.ChangeSeatsAtCounter(ctx, bookingID, &models.ChangeSeatsRequest{
		OldSeats: []string{"A2", "A1"},
		NewSeats: []string{"A2", "B1"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A2", "B1"}, booking.SeatLabels())
	assert.Equal(t, int64(250000), booking.OriginalAmount)
	assert.Equal(t, int64(250000), booking.FinalAmount)
	assert.Equal(t, models.SeatAvailable, h.store.seat(showtimeID, "A1").Status)
	assert.Equal(t, models.SeatBooked, h.store.seat(showtimeID, "A2").Status)
	assert.Equal(t, models.SeatBooked, h.store.seat(showtimeID, "B1").Status)
}

func TestChangeSeatsAtCounterNewSeatHeld(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookingID := h.book(t, alice, "A1")
	h.hold(t, bob, "B2")

	_, err := h.services.Bookings.ChangeSeatsAtCounter(ctx, bookingID, &models.ChangeSeatsRequest{
		OldSeats: []string{"A1"},
		NewSeats: []string{"B2"},
	})

	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"B2"}, conflict.ConflictingSeats)
	assert.Equal(t, models.SeatBooked, h.store.seat(showtimeID, "A1").Status)
}

func TestAddCombosAtCounter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookingID := h.book(t, alice, "A1")

	booking, err := h.services.Bookings.AddCombosAtCounter(ctx, bookingID, &models.AddCombosRequest{
		Combos: []models.ComboItem{{ComboID: 1, Name: "Popcorn", Quantity: 2, Price: 30000}},
	})
	require.NoError(t, err)
	assert.Len(t, booking.Combos, 1)
	assert.Equal(t, int64(160000), booking.OriginalAmount)
	assert.Equal(t, int64(160000), booking.FinalAmount)

	_, err = h.services.Bookings.CancelBooking(ctx, alice, bookingID)
	require.NoError(t, err)

	_, err = h.services.Bookings.AddCombosAtCounter(ctx, bookingID, &models.AddCombosRequest{
		Combos: []models.ComboItem{{ComboID: 2, Quantity: 1, Price: 20000}},
	})
	var businessErr *apperrors.BusinessError
	assert.ErrorAs(t, err, &businessErr)
}

func TestGetAndListBookings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookingID := h.book(t, alice, "A1")

	_, err := h.services.Bookings.Get(ctx, bob, false, bookingID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	booking, err := h.services.Bookings.Get(ctx, bob, true, bookingID)
	require.NoError(t, err)
	assert.Equal(t, alice, booking.UserID)

	items, err := h.services.Bookings.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, bookingID, items[0].ID)
	assert.Equal(t, models.PaymentCompleted, items[0].PaymentStatus)
}

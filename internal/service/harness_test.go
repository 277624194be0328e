package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cineledger/internal/config"
	"cineledger/internal/external"
	"cineledger/internal/models"
)

const (
	showtimeID    int64 = 1
	otherShowtime int64 = 2
	movieID       int64 = 10
	alice         int64 = 1
	bob           int64 = 2
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	clock    *clock
	store    *memStore
	payment  *fakePayment
	events   *fakePublisher
	index    *fakeIndex
	services *Services
}

var testBookingConfig = config.BookingConfig{
	HoldDuration:          10 * time.Minute,
	CancellationCutoff:    2 * time.Hour,
	PointsEarnRatePercent: 10,
}

// newHarness builds two showtimes two days out: row A at 100000, row B at 150000
func newHarness(t *testing.T) *harness {
	t.Helper()

	clk := &clock{now: time.Date(2030, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemStore(clk.Now)

	prices := map[string]int64{"A1": 100000, "A2": 100000, "A3": 100000, "A4": 100000, "B1": 150000, "B2": 150000}
	store.addShowtime(showtimeID, movieID, clk.Now().Add(48*time.Hour), prices)
	store.addShowtime(otherShowtime, movieID, clk.Now().Add(72*time.Hour), prices)
	store.halls[1] = &models.Hall{ID: 1, Name: "Hall 1", Layout: []models.HallRow{
		{Row: "A", Seats: 4, SeatType: "standard"},
		{Row: "B", Seats: 2, SeatType: "vip"},
	}}
	store.addUser(alice, 50000)
	store.addUser(bob, 0)

	h := &harness{
		clock:   clk,
		store:   store,
		payment: &fakePayment{},
		events:  &fakePublisher{},
		index:   &fakeIndex{},
	}
	h.services = NewServices(Deps{
		Seats:     memSeats{store},
		Bookings:  memBookings{store},
		Users:     memUsers{store},
		Vouchers:  memVouchers{store},
		Showtimes: memShowtimes{store},
		Halls:     memHalls{store},
		Payment:   h.payment,
		Events:    h.events,
		Index:     h.index,
		Now:       clk.Now,
	}, testBookingConfig)

	return h
}

func (h *harness) hold(t *testing.T, userID int64, labels ...string) {
	t.Helper()
	_, err := h.services.Seats.HoldSeats(context.Background(), userID, &models.HoldSeatsRequest{
		ShowtimeID: showtimeID,
		SeatLabels: labels,
	})
	require.NoError(t, err)
}

func (h *harness) initialize(t *testing.T, userID int64, req models.InitializePaymentRequest) *models.InitializePaymentResponse {
	t.Helper()
	if req.ShowtimeID == 0 {
		req.ShowtimeID = showtimeID
	}
	resp, err := h.services.Bookings.InitializePayment(context.Background(), userID, &req)
	require.NoError(t, err)
	return resp
}

func (h *harness) callback(bookingID, status string, amount int64, token string) *models.PaymentCallbackResponse {
	return h.services.Bookings.HandlePaymentCallback(context.Background(), &models.PaymentCallback{
		PaymentID:     "pay-1",
		OrderID:       h.orderFor(bookingID),
		Status:        status,
		Amount:        amount,
		TransactionID: "tx-" + bookingID[:8],
		Token:         token,
	})
}

func (h *harness) orderFor(bookingID string) string {
	h.payment.mu.Lock()
	defer h.payment.mu.Unlock()
	for i := len(h.payment.initiated) - 1; i >= 0; i-- {
		if id, err := ParseOrderID(h.payment.initiated[i]); err == nil && id == bookingID {
			return h.payment.initiated[i]
		}
	}
	return NewOrderID(bookingID, h.clock.Now())
}

// book holds, pays and confirms labels for userID, returning the booking id
func (h *harness) book(t *testing.T, userID int64, labels ...string) string {
	t.Helper()

	h.hold(t, userID, labels...)

	var amount int64
	for _, l := range labels {
		amount += h.store.seat(showtimeID, l).Price
	}
	resp := h.initialize(t, userID, models.InitializePaymentRequest{Seats: labels, Amount: amount})

	res := h.callback(resp.BookingID, external.CallbackStatusSuccess, resp.Amount, validToken)
	require.Equal(t, ResultSuccess, res.ResultCode, res.Message)
	return resp.BookingID
}

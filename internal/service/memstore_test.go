package service

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "cineledger/internal/errors"
	"cineledger/internal/external"
	"cineledger/internal/models"
	"cineledger/internal/repository"
	"cineledger/internal/search"
)

// memStore mirrors the conditional-update semantics of the Postgres
// repositories behind one mutex, so each call is atomic like a single
// UPDATE ... WHERE ... RETURNING statement.
type memStore struct {
	mu        sync.Mutex
	seats     map[int64]map[string]*models.Seat
	showtimes map[int64]*models.Showtime
	halls     map[int64]*models.Hall
	bookings  map[string]*models.Booking
	users     map[int64]*models.User
	vouchers  map[string]*models.Voucher
	nextID    int64
	now       func() time.Time
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		seats:     make(map[int64]map[string]*models.Seat),
		showtimes: make(map[int64]*models.Showtime),
		halls:     make(map[int64]*models.Hall),
		bookings:  make(map[string]*models.Booking),
		users:     make(map[int64]*models.User),
		vouchers:  make(map[string]*models.Voucher),
		nextID:    100,
		now:       now,
	}
}

type memSeats struct{ *memStore }
type memBookings struct{ *memStore }
type memUsers struct{ *memStore }
type memVouchers struct{ *memStore }
type memShowtimes struct{ *memStore }
type memHalls struct{ *memStore }

// test fixtures

func (m *memStore) addShowtime(id, movieID int64, start time.Time, seats map[string]int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.showtimes[id] = &models.Showtime{ID: id, MovieID: movieID, HallID: 1, StartTime: start}
	ledger := make(map[string]*models.Seat, len(seats))
	for label, price := range seats {
		ledger[label] = &models.Seat{Label: label, SeatType: "standard", Status: models.SeatAvailable, Price: price}
	}
	m.seats[id] = ledger
}

func (m *memStore) addUser(id, points int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &models.User{UserID: id, Role: models.RoleUser, Points: points}
}

func (m *memStore) addVoucher(v models.Voucher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vouchers[v.Code] = &v
}

func (m *memStore) seat(showtimeID int64, label string) models.Seat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.seats[showtimeID][label]
}

func (m *memStore) points(userID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].Points
}

func (m *memStore) voucherUses(code string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vouchers[code].UsedCount
}

func (m *memStore) booking(id string) models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneBooking(m.bookings[id])
}

func (m *memStore) countStatus(showtimeID int64, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.seats[showtimeID] {
		if s.Status == status {
			n++
		}
	}
	return n
}

func cloneBooking(b *models.Booking) models.Booking {
	c := *b
	c.Seats = append([]models.SeatSnapshot(nil), b.Seats...)
	c.Combos = append([]models.ComboItem(nil), b.Combos...)
	return c
}

func setAvailable(s *models.Seat) {
	s.Status = models.SeatAvailable
	s.HolderID = nil
	s.HeldUntil = nil
	s.BookingID = nil
}

func sortedSeats(ledger map[string]*models.Seat, keep func(*models.Seat) bool) []models.Seat {
	var out []models.Seat
	for _, s := range ledger {
		if keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func contains(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// SeatLedger

func (m memSeats) GetByShowtime(_ context.Context, showtimeID int64) ([]models.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedSeats(m.seats[showtimeID], func(*models.Seat) bool { return true }), nil
}

func (m memSeats) GetByLabels(_ context.Context, showtimeID int64, labels []string) ([]models.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedSeats(m.seats[showtimeID], func(s *models.Seat) bool { return contains(labels, s.Label) }), nil
}

func (m memSeats) Hold(_ context.Context, showtimeID, userID int64, labels []string, until time.Time) (*repository.HoldResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &repository.HoldResult{}
	for _, label := range labels {
		s, ok := m.seats[showtimeID][label]
		if !ok {
			continue
		}
		switch {
		case s.Status == models.SeatAvailable:
			result.Acquired = append(result.Acquired, label)
		case s.Status == models.SeatHeld && *s.HolderID == userID:
			result.Refreshed = append(result.Refreshed, label)
		default:
			continue
		}
		holder, u := userID, until
		s.Status, s.HolderID, s.HeldUntil = models.SeatHeld, &holder, &u
	}
	return result, nil
}

func (m memSeats) Release(_ context.Context, showtimeID, userID int64, labels []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var released []string
	for _, label := range labels {
		s, ok := m.seats[showtimeID][label]
		if ok && s.Status == models.SeatHeld && *s.HolderID == userID {
			setAvailable(s)
			released = append(released, label)
		}
	}
	return released, nil
}

func (m memSeats) ReapExpired(_ context.Context, now time.Time) ([]repository.ExpiredSeat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []repository.ExpiredSeat
	for showtimeID, ledger := range m.seats {
		for _, s := range ledger {
			if s.Status == models.SeatHeld && s.HeldUntil.Before(now) {
				setAvailable(s)
				expired = append(expired, repository.ExpiredSeat{ShowtimeID: showtimeID, Label: s.Label})
			}
		}
	}
	return expired, nil
}

// bookLocked mirrors bookSeats; caller holds mu
func (m *memStore) bookLocked(showtimeID, userID int64, bookingID string, labels []string, allowHeld bool) []string {
	var booked []string
	for _, label := range labels {
		s, ok := m.seats[showtimeID][label]
		if !ok {
			continue
		}
		if s.Status == models.SeatAvailable || (allowHeld && s.Status == models.SeatHeld && *s.HolderID == userID) {
			holder, id := userID, bookingID
			s.Status, s.HolderID, s.HeldUntil, s.BookingID = models.SeatBooked, &holder, nil, &id
			booked = append(booked, label)
		}
	}
	if len(booked) > 0 {
		m.showtimes[showtimeID].HasBookings = true
	}
	return booked
}

func (m *memStore) releaseBookedLocked(showtimeID int64, bookingID string, labels []string) []string {
	var released []string
	for _, label := range labels {
		s, ok := m.seats[showtimeID][label]
		if ok && s.Status == models.SeatBooked && *s.BookingID == bookingID {
			setAvailable(s)
			released = append(released, label)
		}
	}
	return released
}

// BookingStore

func (m memBookings) Create(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b.CreatedAt = m.now()
	b.UpdatedAt = b.CreatedAt
	c := cloneBooking(b)
	m.bookings[b.ID] = &c
	return nil
}

func (m memBookings) GetByID(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	c := cloneBooking(b)
	return &c, nil
}

func (m memBookings) GetByUserID(_ context.Context, userID int64) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memBookings) CommittedSeats(_ context.Context, showtimeID, userID int64, labels []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	for _, b := range m.bookings {
		if b.ShowtimeID != showtimeID || b.BookingStatus != models.BookingActive {
			continue
		}
		if b.PaymentStatus != models.PaymentCompleted && !(b.PaymentStatus == models.PaymentPending && b.UserID != userID) {
			continue
		}
		for _, s := range b.Seats {
			if contains(labels, s.Label) {
				seen[s.Label] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

func (m memBookings) CompletePayment(_ context.Context, booking *models.Booking, txID string, earned int64, paidAt time.Time) (*repository.CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &repository.CompletionResult{}
	b := m.bookings[booking.ID]
	if b == nil || b.BookingStatus != models.BookingActive ||
		(b.PaymentStatus != models.PaymentPending && b.PaymentStatus != models.PaymentFailed) {
		return result, nil
	}

	result.Completed = true
	result.PreviousStatus = b.PaymentStatus
	b.PaymentStatus = models.PaymentCompleted
	b.TransactionID = &txID
	b.PointsEarned = earned
	b.PaidAt = &paidAt

	labels := b.SeatLabels()
	result.Booked = m.bookLocked(b.ShowtimeID, b.UserID, b.ID, labels, true)
	result.Missing = subtract(labels, result.Booked)
	if len(result.Missing) == 0 {
		result.Missing = nil
	}
	return result, nil
}

func (m memBookings) MarkFailed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bookings[id]
	if b == nil || b.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	b.PaymentStatus = models.PaymentFailed
	return true, nil
}

func (m memBookings) Discard(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bookings[id]
	if b == nil || b.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	b.PaymentStatus = models.PaymentFailed
	b.BookingStatus = models.BookingCancelled
	return true, nil
}

func (m memBookings) Cancel(_ context.Context, booking *models.Booking) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bookings[booking.ID]
	if b == nil || b.BookingStatus != models.BookingActive || b.PaymentStatus != models.PaymentCompleted || b.IsUsed {
		return nil, apperrors.Business("booking can no longer be cancelled")
	}
	b.BookingStatus = models.BookingCancelled
	b.PaymentStatus = models.PaymentAwaitingRefund
	return m.releaseBookedLocked(b.ShowtimeID, b.ID, b.SeatLabels()), nil
}

func (m memBookings) SwapSeats(_ context.Context, swap repository.SeatSwap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate before mutating; the real repository rolls back instead
	var missing []string
	for _, label := range swap.Book {
		s, ok := m.seats[swap.NewShowtimeID][label]
		if !ok || s.Status != models.SeatAvailable {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		return apperrors.SeatsUnavailable(missing)
	}
	for _, label := range swap.Release {
		s, ok := m.seats[swap.OldShowtimeID][label]
		if !ok || s.Status != models.SeatBooked || *s.BookingID != swap.BookingID {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		return apperrors.SeatsUnavailable(missing)
	}

	b := m.bookings[swap.BookingID]
	if b == nil || b.BookingStatus != models.BookingActive {
		return apperrors.Business("booking is no longer active")
	}

	m.bookLocked(swap.NewShowtimeID, swap.UserID, swap.BookingID, swap.Book, false)
	m.releaseBookedLocked(swap.OldShowtimeID, swap.BookingID, swap.Release)

	b.ShowtimeID = swap.NewShowtimeID
	b.MovieID = swap.NewMovieID
	b.OriginalAmount = swap.OriginalAmount
	b.FinalAmount = swap.FinalAmount
	b.Seats = append([]models.SeatSnapshot(nil), swap.NewSeats...)
	return nil
}

func (m memBookings) AddCombos(_ context.Context, id string, combos []models.ComboItem, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bookings[id]
	if b == nil || b.BookingStatus != models.BookingActive {
		return false, nil
	}
	b.Combos = append(b.Combos, combos...)
	b.OriginalAmount += amount
	b.FinalAmount += amount
	return true, nil
}

func (m memBookings) MarkUsed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bookings[id]
	if b == nil || b.BookingStatus != models.BookingActive || b.PaymentStatus != models.PaymentCompleted || b.IsUsed {
		return false, nil
	}
	b.IsUsed = true
	return true, nil
}

func (m memBookings) FailStalePending(_ context.Context, cutoff time.Time) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failed []models.Booking
	for _, b := range m.bookings {
		if b.PaymentStatus == models.PaymentPending && b.CreatedAt.Before(cutoff) {
			b.PaymentStatus = models.PaymentFailed
			failed = append(failed, cloneBooking(b))
		}
	}
	return failed, nil
}

// UserStore

func (m memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m memUsers) DebitPoints(_ context.Context, userID, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[userID]
	if u == nil || u.Points < amount {
		return false, nil
	}
	u.Points -= amount
	return true, nil
}

func (m memUsers) AdjustPoints(_ context.Context, userID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[userID]
	if u == nil {
		return 0, apperrors.ErrNotFound
	}
	u.Points = max(u.Points+delta, 0)
	return u.Points, nil
}

// VoucherStore

func (m memVouchers) GetByCode(_ context.Context, code string) (*models.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vouchers[code]
	if !ok {
		return nil, nil
	}
	c := *v
	return &c, nil
}

func (m memVouchers) IncrementUsage(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.vouchers[code]
	if v == nil || (v.UsageLimit > 0 && v.UsedCount >= v.UsageLimit) {
		return false, nil
	}
	v.UsedCount++
	return true, nil
}

func (m memVouchers) DecrementUsage(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.vouchers[code]
	if v == nil || v.UsedCount == 0 {
		return false, nil
	}
	v.UsedCount--
	return true, nil
}

// ShowtimeStore

func (m memShowtimes) Create(_ context.Context, st *models.Showtime) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	st.ID = m.nextID
	st.CreatedAt = m.now()

	c := *st
	c.Seats = nil
	m.showtimes[st.ID] = &c

	ledger := make(map[string]*models.Seat, len(st.Seats))
	for _, s := range st.Seats {
		seat := s
		ledger[s.Label] = &seat
	}
	m.seats[st.ID] = ledger
	return nil
}

func (m memShowtimes) GetByID(_ context.Context, id int64) (*models.Showtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.showtimes[id]
	if !ok || st.DeletedAt != nil {
		return nil, nil
	}
	c := *st
	return &c, nil
}

func (m memShowtimes) SoftDelete(_ context.Context, id int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.showtimes[id]
	if !ok || st.DeletedAt != nil || st.HasBookings {
		return false, nil
	}
	st.DeletedAt = &at
	return true, nil
}

func (m memShowtimes) ListActive(_ context.Context, f repository.ShowtimeFilter) ([]models.Showtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Showtime
	for _, st := range m.showtimes {
		if st.DeletedAt != nil {
			continue
		}
		if f.MovieID != 0 && st.MovieID != f.MovieID {
			continue
		}
		if f.HallID != 0 && st.HallID != f.HallID {
			continue
		}
		if f.Date != "" && st.StartTime.Format(time.DateOnly) != f.Date {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if f.PageSize > 0 {
		page := max(f.Page, 1)
		start := min((page-1)*f.PageSize, len(out))
		end := min(start+f.PageSize, len(out))
		out = out[start:end]
	}
	return out, nil
}

// HallStore

func (m memHalls) GetByID(_ context.Context, id int64) (*models.Hall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.halls[id]
	if !ok {
		return nil, nil
	}
	c := *h
	return &c, nil
}

// fakePayment accepts every payment unless told otherwise and verifies
// callbacks by a fixed token.
type fakePayment struct {
	mu        sync.Mutex
	err       error
	initiated []string
}

const validToken = "signed"

func (f *fakePayment) Initiate(_ context.Context, amount int64, orderID, _ string) (*external.PaymentInitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.initiated = append(f.initiated, orderID)
	return &external.PaymentInitResponse{
		Success:    true,
		PaymentID:  "pay-" + orderID,
		OrderID:    orderID,
		Amount:     amount,
		PaymentURL: "https://pay.example/" + orderID,
	}, nil
}

func (f *fakePayment) VerifyCallback(cb models.PaymentCallback) bool {
	return cb.Token == validToken
}

func (f *fakePayment) lastOrderID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.initiated) == 0 {
		return ""
	}
	return f.initiated[len(f.initiated)-1]
}

type recordedEvent struct {
	subject string
	data    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{subject, data})
	return nil
}

func (p *fakePublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.subject == subject {
			n++
		}
	}
	return n
}

type fakeIndex struct {
	mu      sync.Mutex
	indexed map[int64]bool
	err     error
}

func (f *fakeIndex) IndexShowtime(_ context.Context, st *models.Showtime) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexed == nil {
		f.indexed = map[int64]bool{}
	}
	f.indexed[st.ID] = true
	return nil
}

func (f *fakeIndex) DeleteShowtime(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexed, id)
	return nil
}

func (f *fakeIndex) SearchShowtimes(context.Context, search.ShowtimeQuery) ([]models.ShowtimeSearchItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.ShowtimeSearchItem{{ID: 1}}, nil
}

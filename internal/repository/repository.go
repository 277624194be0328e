package repository

import (
	"cineledger/internal/database"
)

type Repositories struct {
	Seats         *SeatRepository
	Bookings      *BookingRepository
	Users         *UserRepository
	Vouchers      *VoucherRepository
	Showtimes     *ShowtimeRepository
	Halls         *HallRepository
	Notifications *NotificationRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Seats:         NewSeatRepository(db),
		Bookings:      NewBookingRepository(db),
		Users:         NewUserRepository(db),
		Vouchers:      NewVoucherRepository(db),
		Showtimes:     NewShowtimeRepository(db),
		Halls:         NewHallRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cineledger/internal/middleware"
	"cineledger/internal/models"
	"cineledger/internal/search"
	"cineledger/internal/service"
)

type SeatOperations interface {
	HoldSeats(ctx context.Context, userID int64, req *models.HoldSeatsRequest) (*models.HoldSeatsResponse, error)
	ReleaseSeats(ctx context.Context, userID int64, req *models.ReleaseSeatsRequest) (*models.ReleaseSeatsResponse, error)
	GetSeatMap(ctx context.Context, showtimeID int64) (*models.SeatMapResponse, error)
}

type BookingOperations interface {
	InitializePayment(ctx context.Context, userID int64, req *models.InitializePaymentRequest) (*models.InitializePaymentResponse, error)
	HandlePaymentCallback(ctx context.Context, cb *models.PaymentCallback) *models.PaymentCallbackResponse
	CancelBooking(ctx context.Context, userID int64, bookingID string) (*models.CancelBookingResponse, error)
	ExchangeTicket(ctx context.Context, userID int64, bookingID string, req *models.ExchangeTicketRequest) (*models.Booking, error)
	ChangeSeatsAtCounter(ctx context.Context, bookingID string, req *models.ChangeSeatsRequest) (*models.Booking, error)
	AddCombosAtCounter(ctx context.Context, bookingID string, req *models.AddCombosRequest) (*models.Booking, error)
	MarkUsed(ctx context.Context, bookingID string) (*models.Booking, error)
	List(ctx context.Context, userID int64) ([]models.ListBookingsResponseItem, error)
	Get(ctx context.Context, userID int64, isAdmin bool, bookingID string) (*models.Booking, error)
}

type ShowtimeOperations interface {
	Create(ctx context.Context, req *models.CreateShowtimeRequest) (*models.CreateShowtimeResponse, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, q search.ShowtimeQuery) ([]models.ShowtimeSearchItem, error)
}

type Handlers struct {
	seats     SeatOperations
	bookings  BookingOperations
	showtimes ShowtimeOperations
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		seats:     services.Seats,
		bookings:  services.Bookings,
		showtimes: services.Showtimes,
	}
}

// currentUser returns the authenticated caller; routes without JWTAuth never reach it
func currentUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return userID, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

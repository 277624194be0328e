package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cineledger/internal/middleware"
	"cineledger/internal/models"
)

// InitializePayment - POST /api/bookings/initialize-payment
// Creates a pending booking from the caller's holds and returns the gateway URL.
func (h *Handlers) InitializePayment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.InitializePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.bookings.InitializePayment(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, "initialize payment", err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ListBookings - GET /api/bookings
func (h *Handlers) ListBookings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	response, err := h.bookings.List(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, "list bookings", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetBooking - GET /api/bookings/:id
func (h *Handlers) GetBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	booking, err := h.bookings.Get(c.Request.Context(), userID, middleware.IsAdmin(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, "get booking", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CancelBooking - PUT /api/bookings/:id/cancel
func (h *Handlers) CancelBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	response, err := h.bookings.CancelBooking(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleServiceError(c, "cancel booking", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ExchangeTicket - PUT /api/bookings/:id/exchange
func (h *Handlers) ExchangeTicket(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.ExchangeTicketRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookings.ExchangeTicket(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		handleServiceError(c, "exchange ticket", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ChangeSeatsAtCounter - POST /api/admin/bookings/:id/change-seats
func (h *Handlers) ChangeSeatsAtCounter(c *gin.Context) {
	var req models.ChangeSeatsRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookings.ChangeSeatsAtCounter(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleServiceError(c, "change seats", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// AddCombosAtCounter - POST /api/admin/bookings/:id/combos
func (h *Handlers) AddCombosAtCounter(c *gin.Context) {
	var req models.AddCombosRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookings.AddCombosAtCounter(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleServiceError(c, "add combos", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// MarkUsed - PATCH /api/admin/bookings/:id/use
func (h *Handlers) MarkUsed(c *gin.Context) {
	booking, err := h.bookings.MarkUsed(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, "mark ticket used", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

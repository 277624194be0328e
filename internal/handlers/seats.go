package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cineledger/internal/models"
)

// HoldSeats - POST /api/seats/hold
func (h *Handlers) HoldSeats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.HoldSeatsRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.seats.HoldSeats(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, "hold seats", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ReleaseSeats - POST /api/seats/release
// Only the caller's own holds are released; repeating the call is harmless.
func (h *Handlers) ReleaseSeats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.ReleaseSeatsRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.seats.ReleaseSeats(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, "release seats", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetSeatMap - GET /api/showtimes/:id/seats
func (h *Handlers) GetSeatMap(c *gin.Context) {
	showtimeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || showtimeID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid showtime id"})
		return
	}

	response, err := h.seats.GetSeatMap(c.Request.Context(), showtimeID)
	if err != nil {
		handleServiceError(c, "get seat map", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

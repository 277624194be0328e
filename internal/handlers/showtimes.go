package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cineledger/internal/models"
	"cineledger/internal/search"
)

// CreateShowtime - POST /api/admin/showtimes
func (h *Handlers) CreateShowtime(c *gin.Context) {
	var req models.CreateShowtimeRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.showtimes.Create(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, "create showtime", err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// DeleteShowtime - DELETE /api/admin/showtimes/:id
func (h *Handlers) DeleteShowtime(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid showtime id"})
		return
	}

	if err := h.showtimes.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, "delete showtime", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SearchShowtimes - GET /api/showtimes
func (h *Handlers) SearchShowtimes(c *gin.Context) {
	movieID, _ := strconv.ParseInt(c.Query("movieId"), 10, 64)
	hallID, _ := strconv.ParseInt(c.Query("hallId"), 10, 64)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	if page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be >= 1"})
		return
	}
	if pageSize < 1 || pageSize > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be between 1 and 100"})
		return
	}

	date := c.Query("date")
	if date != "" {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
	}

	items, err := h.showtimes.Search(c.Request.Context(), search.ShowtimeQuery{
		MovieID:  movieID,
		HallID:   hallID,
		Date:     date,
		From:     time.Now(),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		handleServiceError(c, "search showtimes", err)
		return
	}

	c.JSON(http.StatusOK, items)
}

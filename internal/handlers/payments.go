package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cineledger/internal/logger"
	"cineledger/internal/models"
	"cineledger/internal/service"
)

// PaymentCallback - POST /api/payments/callback (JSON) and GET (query string).
// The gateway always gets 200; the outcome travels in result_code.
func (h *Handlers) PaymentCallback(c *gin.Context) {
	var cb models.PaymentCallback
	if err := c.ShouldBind(&cb); err != nil {
		logger.WithContext(c.Request.Context()).Warn("Malformed payment callback", "error", err)
		c.JSON(http.StatusOK, models.PaymentCallbackResponse{
			ResultCode: service.ResultInvalidOrder,
			Message:    "malformed callback",
		})
		return
	}

	c.JSON(http.StatusOK, h.bookings.HandlePaymentCallback(c.Request.Context(), &cb))
}

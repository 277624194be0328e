package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "cineledger/internal/errors"
	"cineledger/internal/logger"
)

// handleServiceError maps service errors onto HTTP responses. Conflicts
// always enumerate the seats or amounts at fault.
func handleServiceError(c *gin.Context, operation string, err error) {
	var validationErr *apperrors.ValidationError
	var conflictErr *apperrors.ConflictError
	var businessErr *apperrors.BusinessError

	switch {
	case apperrors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case apperrors.As(err, &conflictErr):
		body := gin.H{"error": conflictErr.Message}
		if len(conflictErr.ConflictingSeats) > 0 {
			body["conflicting_seats"] = conflictErr.ConflictingSeats
		}
		if conflictErr.Expected != nil {
			body["expected"] = *conflictErr.Expected
		}
		if conflictErr.Actual != nil {
			body["actual"] = *conflictErr.Actual
		}
		c.JSON(http.StatusBadRequest, body)
	case apperrors.As(err, &businessErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": businessErr.Message})
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case apperrors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
	case apperrors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case apperrors.Is(err, apperrors.ErrPaymentRejected):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment was rejected by the provider"})
	case apperrors.Is(err, apperrors.ErrPaymentUnavailable):
		logger.WithContext(c.Request.Context()).Error("Payment provider unavailable", "operation", operation, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider is unavailable"})
	default:
		logger.WithContext(c.Request.Context()).Error("Request failed", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + operation})
	}
	_ = c.Error(err)
}

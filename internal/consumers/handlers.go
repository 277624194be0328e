package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/stan.go"

	"cineledger/internal/models"
)

const (
	KindBookingCompleted = "booking_completed"
	KindBookingCancelled = "booking_cancelled"
)

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Handlers turn booking events into user notifications
type Handlers struct {
	notifications NotificationStore
}

func NewHandlers(notifications NotificationStore) *Handlers {
	return &Handlers{notifications: notifications}
}

func (h *Handlers) HandleBookingCompleted(m *stan.Msg) error {
	var event models.BookingCompletedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		// Redelivery cannot fix a malformed payload
		slog.Error("Failed to unmarshal booking completed event", "sequence", m.Sequence, "error", err)
		return nil
	}
	return h.notifyCompleted(context.Background(), event)
}

func (h *Handlers) HandleBookingCancelled(m *stan.Msg) error {
	var event models.BookingCancelledEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking cancelled event", "sequence", m.Sequence, "error", err)
		return nil
	}
	return h.notifyCancelled(context.Background(), event)
}

func (h *Handlers) notifyCompleted(ctx context.Context, event models.BookingCompletedEvent) error {
	slog.Info("Processing booking completed event", "booking_id", event.BookingID, "user_id", event.UserID)

	n := &models.Notification{
		UserID: event.UserID,
		Kind:   KindBookingCompleted,
		Title:  "Booking confirmed",
		Message: fmt.Sprintf("Your booking %s for seats %s is paid (%d). You earned %d points.",
			event.BookingID, strings.Join(event.Seats, ", "), event.FinalAmount, event.PointsEarned),
	}
	if err := h.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification for booking %s: %w", event.BookingID, err)
	}
	return nil
}

func (h *Handlers) notifyCancelled(ctx context.Context, event models.BookingCancelledEvent) error {
	slog.Info("Processing booking cancelled event", "booking_id", event.BookingID, "user_id", event.UserID)

	msg := fmt.Sprintf("Your booking %s was cancelled.", event.BookingID)
	switch {
	case event.NetPointChange > 0:
		msg += fmt.Sprintf(" %d points were returned to your balance.", event.NetPointChange)
	case event.NetPointChange < 0:
		msg += fmt.Sprintf(" %d earned points were withdrawn.", -event.NetPointChange)
	}

	n := &models.Notification{
		UserID:  event.UserID,
		Kind:    KindBookingCancelled,
		Title:   "Booking cancelled",
		Message: msg,
	}
	if err := h.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification for booking %s: %w", event.BookingID, err)
	}
	return nil
}

package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/stan.go"

	"cineledger/internal/config"
	"cineledger/internal/database"
	"cineledger/internal/messaging"
	"cineledger/internal/models"
	"cineledger/internal/repository"
)

const queueGroup = "notifications"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		handlers: NewHandlers(repository.NewNotificationRepository(db)),
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	subscriptions := []struct {
		subject string
		handler messaging.MessageHandler
	}{
		{models.EventBookingCompleted, cs.handlers.HandleBookingCompleted},
		{models.EventBookingCancelled, cs.handlers.HandleBookingCancelled},
	}

	for _, s := range subscriptions {
		sub, err := cs.nats.SubscribeQueue(s.subject, queueGroup, s.handler)
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully", "subscriptions", len(cs.subs))
	return nil
}

// Shutdown closes subscriptions without unsubscribing, so durable positions survive a restart
func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Warn("Failed to close subscription", "error", err)
		}
	}

	if err := cs.nats.Close(); err != nil {
		slog.Error("Failed to close NATS connection", "error", err)
	}
	if err := cs.db.Close(); err != nil {
		slog.Error("Failed to close database connection", "error", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/stan.go"
)

type NATSClient struct {
	conn stan.Conn
}

type Config struct {
	URL       string
	ClusterID string
	ClientID  string
}

// MessageHandler processes one decoded message. Returning an error leaves
// the message unacknowledged so the server redelivers it after AckWait.
type MessageHandler func(msg *stan.Msg) error

func NewNATSClient(cfg Config) (*NATSClient, error) {
	// Unique client ID so several replicas can share a cluster
	uniqueClientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])

	conn, err := stan.Connect(cfg.ClusterID, uniqueClientID,
		stan.NatsURL(cfg.URL),
		stan.SetConnectionLostHandler(func(_ stan.Conn, reason error) {
			slog.Error("NATS Streaming connection lost", "error", reason)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS Streaming: %w", err)
	}

	slog.Info("Connected to NATS Streaming",
		"url", cfg.URL, "cluster", cfg.ClusterID, "client", uniqueClientID)

	return &NATSClient{conn: conn}, nil
}

func (nc *NATSClient) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := nc.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}

	slog.Debug("Published message", "subject", subject)
	return nil
}

// SubscribeQueue joins a durable queue group with manual acks; a message is
// acked only when handler succeeds.
func (nc *NATSClient) SubscribeQueue(subject, queue string, handler MessageHandler) (stan.Subscription, error) {
	sub, err := nc.conn.QueueSubscribe(subject, queue, func(msg *stan.Msg) {
		if err := handler(msg); err != nil {
			slog.Error("Message handler failed", "subject", subject, "sequence", msg.Sequence, "error", err)
			return
		}
		if err := msg.Ack(); err != nil {
			slog.Error("Failed to ack message", "subject", subject, "sequence", msg.Sequence, "error", err)
		}
	},
		stan.DurableName(subject+"-"+queue+"-durable"),
		stan.SetManualAckMode(),
		stan.AckWait(30*time.Second),
		stan.MaxInflight(1))
	if err != nil {
		return nil, fmt.Errorf("failed to queue subscribe to subject %s: %w", subject, err)
	}

	slog.Info("Subscribed to subject", "subject", subject, "queue", queue)
	return sub, nil
}

// Ping reports whether the underlying NATS connection is up
func (nc *NATSClient) Ping(_ context.Context) error {
	if conn := nc.conn.NatsConn(); conn == nil || !conn.IsConnected() {
		return fmt.Errorf("nats connection is down")
	}
	return nil
}

func (nc *NATSClient) Close() error {
	if nc.conn != nil {
		return nc.conn.Close()
	}
	return nil
}

package repository

import (
	"context"

	"cineledger/internal/database"
	"cineledger/internal/models"
)

type NotificationRepository struct {
	db *database.DB
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, kind, title, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query, n.UserID, n.Kind, n.Title, n.Message).
		Scan(&n.ID, &n.CreatedAt)
}

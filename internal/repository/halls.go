package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cineledger/internal/database"
	"cineledger/internal/models"
)

type HallRepository struct {
	db *database.DB
}

func NewHallRepository(db *database.DB) *HallRepository {
	return &HallRepository{db: db}
}

func (r *HallRepository) GetByID(ctx context.Context, id int64) (*models.Hall, error) {
	hall := &models.Hall{}
	var layout []byte

	query := `
		SELECT id, cinema_id, name, layout, created_at
		FROM halls
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&hall.ID,
		&hall.CinemaID,
		&hall.Name,
		&layout,
		&hall.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(layout, &hall.Layout); err != nil {
		return nil, fmt.Errorf("failed to decode hall layout: %w", err)
	}

	return hall, nil
}

func (r *HallRepository) Create(ctx context.Context, hall *models.Hall) error {
	layout, err := json.Marshal(hall.Layout)
	if err != nil {
		return fmt.Errorf("failed to marshal hall layout: %w", err)
	}

	query := `
		INSERT INTO halls (cinema_id, name, layout)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query, hall.CinemaID, hall.Name, layout).
		Scan(&hall.ID, &hall.CreatedAt)
}

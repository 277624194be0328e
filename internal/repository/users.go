package repository

import (
	"context"
	"database/sql"

	"cineledger/internal/database"
	"cineledger/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `user_id, email, full_name, role, points, registered_at`

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, full_name, role, points)
		VALUES ($1, $2, $3, $4)
		RETURNING user_id, registered_at`

	return r.db.QueryRowContext(ctx, query,
		user.Email,
		user.FullName,
		user.Role,
		user.Points,
	).Scan(&user.UserID, &user.RegisteredAt)
}

// DebitPoints subtracts amount only if the balance covers it
func (r *UserRepository) DebitPoints(ctx context.Context, userID, amount int64) (bool, error) {
	query := `
		UPDATE users
		SET points = points - $2
		WHERE user_id = $1 AND points >= $2`

	return execAffected(ctx, r.db, query, userID, amount)
}

// AdjustPoints applies delta to the balance, clamping the result at zero
func (r *UserRepository) AdjustPoints(ctx context.Context, userID, delta int64) (int64, error) {
	query := `
		UPDATE users
		SET points = GREATEST(points + $2, 0)
		WHERE user_id = $1
		RETURNING points`

	var balance int64
	err := r.db.QueryRowContext(ctx, query, userID, delta).Scan(&balance)
	return balance, err
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.UserID,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.Points,
		&user.RegisteredAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

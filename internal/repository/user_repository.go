package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/commune-dev/commune-api/internal/models"
)

// UserRepository provides database access for accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and fills in the generated id and timestamps.
// Unique-constraint violations bubble up unwrapped enough for the service to
// inspect the driver error.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `INSERT INTO users (email, hashed_password, salt, nickname, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING user_id`
	if err := r.db.QueryRowxContext(ctx, query, user.Email, user.HashedPassword, user.Salt, user.Nickname, user.CreatedAt, user.UpdatedAt).Scan(&user.UserID); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByEmailWithPassword returns a user by email including password fields.
// Only the login flow may call this.
func (r *UserRepository) FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT user_id, email, hashed_password, salt, nickname, created_at, updated_at FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier without password fields.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT user_id, email, '' AS hashed_password, '' AS salt, nickname, created_at, updated_at FROM users WHERE user_id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// UpdateNickname changes the nickname and returns the number of rows touched
// so the caller can distinguish a missing user from a successful update.
func (r *UserRepository) UpdateNickname(ctx context.Context, id int64, nickname string) (int64, error) {
	const query = `UPDATE users SET nickname = $2, updated_at = $3 WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, id, nickname, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("update nickname: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update nickname rows affected: %w", err)
	}
	return affected, nil
}

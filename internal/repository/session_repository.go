package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/commune-dev/commune-api/internal/models"
)

// SessionRepository persists refresh-token sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a session row keyed by its session id.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sessions (session_id, user_id, refresh_token, user_agent, client_ip, is_blocked, expired_at, created_at) VALUES (:session_id, :user_id, :refresh_token, :user_agent, :client_ip, :is_blocked, :expired_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID returns a session by its session id.
func (r *SessionRepository) FindByID(ctx context.Context, sessionID string) (*models.Session, error) {
	const query = `SELECT session_id, user_id, refresh_token, user_agent, client_ip, is_blocked, expired_at, created_at FROM sessions WHERE session_id = $1 LIMIT 1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// Block revokes a session. The row survives; only the flag flips.
func (r *SessionRepository) Block(ctx context.Context, sessionID string) error {
	const query = `UPDATE sessions SET is_blocked = TRUE WHERE session_id = $1`
	res, err := r.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("block session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("block session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

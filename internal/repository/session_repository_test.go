package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/commune-dev/commune-api/internal/models"
)

func TestSessionRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	expires := time.Now().UTC().Add(14 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session := &models.Session{
		SessionID:    "3f1d9a6e-0000-0000-0000-000000000001",
		UserID:       7,
		RefreshToken: "refresh.jwt",
		UserAgent:    "curl/8",
		ClientIP:     "127.0.0.1",
		ExpiredAt:    expires,
	}
	require.NoError(t, repo.Create(context.Background(), session))
	require.False(t, session.CreatedAt.IsZero())

	rows := sqlmock.NewRows([]string{"session_id", "user_id", "refresh_token", "user_agent", "client_ip", "is_blocked", "expired_at", "created_at"}).
		AddRow(session.SessionID, int64(7), "refresh.jwt", "curl/8", "127.0.0.1", false, expires, session.CreatedAt)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT session_id, user_id, refresh_token")).
		WithArgs(session.SessionID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), session.SessionID)
	require.NoError(t, err)
	require.Equal(t, "refresh.jwt", found.RefreshToken)
	require.False(t, found.IsBlocked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryBlock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET is_blocked")).
		WithArgs("sid").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Block(context.Background(), "sid"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryBlockMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET is_blocked")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Block(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

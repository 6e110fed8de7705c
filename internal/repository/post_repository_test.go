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

func TestPostRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPostRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO posts")).
		WithArgs(int64(7), int64(2), "title", "", "body", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"post_id"}).AddRow(int64(11)))

	post := &models.Post{UserID: 7, CategoryID: 2, Title: "title", Description: "body"}
	require.NoError(t, repo.Create(context.Background(), post))
	require.Equal(t, int64(11), post.PostID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryFindByIDSkipsDeleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPostRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("deleted_at IS NULL")).
		WithArgs(int64(11)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 11)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPostRepository(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"post_id", "user_id", "category_id", "title", "thumbnail_image_url", "description", "created_at", "updated_at", "deleted_at"}).
		AddRow(int64(2), int64(7), int64(1), "second", "", "", now, now, nil).
		AddRow(int64(1), int64(7), int64(1), "first", "", "", now.Add(-time.Hour), now.Add(-time.Hour), nil)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT")).
		WithArgs(20, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM posts")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	posts, total, err := repo.List(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Equal(t, 2, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPostRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts SET deleted_at")).
		WithArgs(int64(11), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), 11))
	require.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
	appErrors "github.com/commune-dev/commune-api/pkg/errors"
)

type mockProfileRepo struct {
	users     map[int64]models.User
	updateErr error
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProfileRepo) UpdateNickname(ctx context.Context, id int64, nickname string) (int64, error) {
	if m.updateErr != nil {
		return 0, m.updateErr
	}
	u, ok := m.users[id]
	if !ok {
		return 0, nil
	}
	u.Nickname = nickname
	m.users[id] = u
	return 1, nil
}

func TestUserServiceGet(t *testing.T) {
	repo := &mockProfileRepo{users: map[int64]models.User{7: {UserID: 7, Email: "alice@example.com", Nickname: "alice"}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "alice", user.Nickname)
}

func TestUserServiceGetMissing(t *testing.T) {
	svc := NewUserService(&mockProfileRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), 99)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceUpdateNickname(t *testing.T) {
	repo := &mockProfileRepo{users: map[int64]models.User{7: {UserID: 7, Nickname: "alice"}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.UpdateNickname(context.Background(), 7, models.UpdateUserRequest{Nickname: "alice2"})
	require.NoError(t, err)
	require.Equal(t, "alice2", user.Nickname)
}

func TestUserServiceUpdateNicknameDuplicate(t *testing.T) {
	repo := &mockProfileRepo{
		users:     map[int64]models.User{7: {UserID: 7, Nickname: "alice"}},
		updateErr: &pq.Error{Code: "23505", Detail: "Key (nickname)=(bob) already exists."},
	}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.UpdateNickname(context.Background(), 7, models.UpdateUserRequest{Nickname: "bob"})
	require.True(t, appErrors.Is(err, appErrors.ErrDuplicateEntry))
	require.Equal(t, "Key (nickname)=(bob) already exists.", appErrors.FromError(err).Message)
}

func TestUserServiceUpdateNicknameMissingUser(t *testing.T) {
	svc := NewUserService(&mockProfileRepo{}, validator.New(), zap.NewNop())

	_, err := svc.UpdateNickname(context.Background(), 99, models.UpdateUserRequest{Nickname: "bob"})
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

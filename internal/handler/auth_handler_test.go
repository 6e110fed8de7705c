package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/middleware"
	"github.com/commune-dev/commune-api/internal/models"
	"github.com/commune-dev/commune-api/internal/service"
)

type fakeUserStore struct {
	byEmail map[string]*models.User
	byID    map[int64]*models.User
	nextID  int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]*models.User), byID: make(map[int64]*models.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.nextID++
	user.UserID = f.nextID
	copied := *user
	f.byEmail[user.Email] = &copied
	f.byID[user.UserID] = &copied
	return nil
}

func (f *fakeUserStore) FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		copied := *u
		copied.HashedPassword = ""
		copied.Salt = ""
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) UpdateNickname(ctx context.Context, id int64, nickname string) (int64, error) {
	u, ok := f.byID[id]
	if !ok {
		return 0, nil
	}
	u.Nickname = nickname
	return 1, nil
}

type fakeSessionStore struct {
	sessions map[string]*models.Session
}

func (f *fakeSessionStore) Create(ctx context.Context, session *models.Session) error {
	if f.sessions == nil {
		f.sessions = make(map[string]*models.Session)
	}
	copied := *session
	f.sessions[session.SessionID] = &copied
	return nil
}

func (f *fakeSessionStore) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := f.sessions[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSessionStore) Block(ctx context.Context, id string) error {
	if s, ok := f.sessions[id]; ok {
		s.IsBlocked = true
		return nil
	}
	return sql.ErrNoRows
}

func newAuthTestRouter(t *testing.T) (*gin.Engine, *fakeUserStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := newFakeUserStore()
	sessions := &fakeSessionStore{}
	tokens := service.NewTokenService(service.TokenConfig{
		Secret:            "test-secret",
		Issuer:            "commune-api",
		AccessExpiration:  time.Minute,
		RefreshExpiration: time.Hour,
	})
	authSvc := service.NewAuthService(users, sessions, tokens, validator.New(), zap.NewNop())
	userSvc := service.NewUserService(users, validator.New(), zap.NewNop())

	authHandler := NewAuthHandler(authSvc)
	userHandler := NewUserHandler(userSvc)

	r := gin.New()
	r.POST("/auth/register", authHandler.Register)
	r.POST("/auth/login", authHandler.Login)
	r.POST("/auth/renew-access-token", authHandler.RenewAccessToken)
	r.GET("/users/me", middleware.JWT(tokens), userHandler.Me)
	return r, users
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthFlowEndToEnd(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/auth/register", models.RegisterRequest{
		Email:    "alice@example.com",
		Password: "secret",
		Nickname: "alice",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotContains(t, w.Body.String(), "hashedPassword")

	w = doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "secret",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var login struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Data.AccessToken)
	require.NotEmpty(t, login.Data.RefreshToken)
	require.NotEmpty(t, login.Data.SessionID)

	w = doJSON(t, r, http.MethodGet, "/users/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Data.AccessToken,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "alice")

	w = doJSON(t, r, http.MethodPost, "/auth/renew-access-token", models.RenewAccessTokenRequest{
		RefreshToken: login.Data.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var renew struct {
		Data models.RenewAccessTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &renew))
	require.NotEmpty(t, renew.Data.AccessToken)
}

func TestAuthLoginUnknownEmailReturns404(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "secret",
	}, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "not found user")
}

func TestAuthRenewGarbageTokenReturns400(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/auth/renew-access-token", models.RenewAccessTokenRequest{
		RefreshToken: "garbage",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid refresh token")
}

func TestUsersMeRequiresToken(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/users/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

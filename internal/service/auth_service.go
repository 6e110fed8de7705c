package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
	"github.com/commune-dev/commune-api/pkg/database"
	appErrors "github.com/commune-dev/commune-api/pkg/errors"
	"github.com/commune-dev/commune-api/pkg/password"
)

type authUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error)
}

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Block(ctx context.Context, id string) error
}

// AuthService implements registration, login and access-token renewal.
// Refresh tokens are never rotated on renewal; revocation happens by
// blocking the session row the refresh token points at.
type AuthService struct {
	users     authUserRepository
	sessions  sessionRepository
	tokens    *TokenService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, sessions sessionRepository, tokens *TokenService, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, sessions: sessions, tokens: tokens, validator: validate, logger: logger}
}

// Register creates a user with a fresh salt and derived password hash.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register payload")
	}

	salt, err := password.GenerateSalt()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate salt")
	}

	user := &models.User{
		Email:          req.Email,
		HashedPassword: password.Hash(req.Password, salt),
		Salt:           salt,
		Nickname:       req.Nickname,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if pqErr, ok := database.UniqueViolation(err); ok {
			return nil, appErrors.Wrap(err, appErrors.ErrDuplicateEntry.Code, appErrors.ErrDuplicateEntry.Status, database.ConflictDetail(pqErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	return user.Sanitize(), nil
}

// Login authenticates a user, persists a new session and returns the token
// pair. Each login creates an independent session, so concurrent devices
// stay valid until each one is blocked on its own.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmailWithPassword(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not found user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !password.Verify(req.Password, user.HashedPassword, user.Salt) {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "wrong password")
	}

	sessionID := uuid.NewString()

	refreshToken, expiresAt, err := s.tokens.IssueRefreshToken(sessionID, user.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	session := &models.Session{
		SessionID:    sessionID,
		UserID:       user.UserID,
		RefreshToken: refreshToken,
		UserAgent:    req.UserAgent,
		ClientIP:     req.IP,
		IsBlocked:    false,
		ExpiredAt:    expiresAt,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	accessToken, err := s.tokens.IssueAccessToken(user.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.LoginResponse{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitize(),
	}, nil
}

// RenewAccessToken exchanges a valid refresh token for a new access token.
// The presented token must match the stored session byte for byte and the
// session must be alive; the refresh token itself is left untouched.
func (s *AuthService) RenewAccessToken(ctx context.Context, req models.RenewAccessTokenRequest) (*models.RenewAccessTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid renew payload")
	}

	claims, err := s.tokens.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh token")
	}

	session, err := s.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not found session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}

	// None of these reveal which check failed; a blocked, stolen, or stale
	// token all look the same to the caller.
	if session.IsBlocked {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if session.RefreshToken != req.RefreshToken {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if session.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if time.Now().UTC().After(session.ExpiredAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	accessToken, err := s.tokens.IssueAccessToken(session.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.RenewAccessTokenResponse{AccessToken: accessToken}, nil
}

// BlockSession revokes a session so its refresh token stops renewing.
func (s *AuthService) BlockSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Block(ctx, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "not found session")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block session")
	}
	return nil
}

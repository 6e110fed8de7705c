package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
	"github.com/commune-dev/commune-api/pkg/database"
	appErrors "github.com/commune-dev/commune-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	UpdateNickname(ctx context.Context, id int64, nickname string) (int64, error)
}

// UserService handles profile use-cases.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Get returns the user's public profile.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not found user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user.Sanitize(), nil
}

// UpdateNickname changes the caller's nickname and returns the fresh profile.
func (s *UserService) UpdateNickname(ctx context.Context, id int64, req models.UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	affected, err := s.repo.UpdateNickname(ctx, id, req.Nickname)
	if err != nil {
		if pqErr, ok := database.UniqueViolation(err); ok {
			return nil, appErrors.Wrap(err, appErrors.ErrDuplicateEntry.Code, appErrors.ErrDuplicateEntry.Status, database.ConflictDetail(pqErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update nickname")
	}
	if affected == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "not found user")
	}

	return s.Get(ctx, id)
}

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

type postRepository interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, take, skip int) ([]models.Post, int, error)
	Update(ctx context.Context, post *models.Post) error
	SoftDelete(ctx context.Context, id int64) error
}

// CreatePostRequest holds payload for creating posts.
type CreatePostRequest struct {
	CategoryID        int64  `json:"categoryId" validate:"required"`
	Title             string `json:"title" validate:"required,max=200"`
	ThumbnailImageURL string `json:"thumbnailImageUrl" validate:"omitempty,url"`
	Description       string `json:"description"`
}

// UpdatePostRequest holds payload for updating posts.
type UpdatePostRequest struct {
	CategoryID        int64  `json:"categoryId" validate:"required"`
	Title             string `json:"title" validate:"required,max=200"`
	ThumbnailImageURL string `json:"thumbnailImageUrl" validate:"omitempty,url"`
	Description       string `json:"description"`
}

// PostList pairs a page of posts with the total live count.
type PostList struct {
	Posts []models.Post `json:"posts"`
	Total int           `json:"total"`
}

// PostService handles board post use-cases. Mutations are owner-only and
// deletes are soft.
type PostService struct {
	repo      postRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPostService constructs the post service.
func NewPostService(repo postRepository, validate *validator.Validate, logger *zap.Logger) *PostService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{repo: repo, validator: validate, logger: logger}
}

// Create publishes a post for the authenticated user.
func (s *PostService) Create(ctx context.Context, req CreatePostRequest, userID int64) (*models.Post, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid post payload")
	}

	post := &models.Post{
		UserID:            userID,
		CategoryID:        req.CategoryID,
		Title:             req.Title,
		ThumbnailImageURL: req.ThumbnailImageURL,
		Description:       req.Description,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		if _, ok := database.ForeignKeyViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not found category")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create post")
	}
	return post, nil
}

// Get returns a single live post.
func (s *PostService) Get(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not found post")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load post")
	}
	return post, nil
}

// List returns a page of live posts, newest first.
func (s *PostService) List(ctx context.Context, take, skip int) (*PostList, error) {
	posts, total, err := s.repo.List(ctx, take, skip)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list posts")
	}
	return &PostList{Posts: posts, Total: total}, nil
}

// Update rewrites a post. Only the author may update it.
func (s *PostService) Update(ctx context.Context, id int64, req UpdatePostRequest, userID int64) (*models.Post, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid post payload")
	}

	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the post author")
	}

	post.CategoryID = req.CategoryID
	post.Title = req.Title
	post.ThumbnailImageURL = req.ThumbnailImageURL
	post.Description = req.Description

	if err := s.repo.Update(ctx, post); err != nil {
		if _, ok := database.ForeignKeyViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not found category")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update post")
	}
	return post, nil
}

// Delete soft-deletes a post. Only the author may delete it.
func (s *PostService) Delete(ctx context.Context, id, userID int64) error {
	post, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "not the post author")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete post")
	}
	return nil
}

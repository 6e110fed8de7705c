package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
	appErrors "github.com/commune-dev/commune-api/pkg/errors"
)

const categoryListCacheKey = "categories:list"

type categoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
}

// CategoryService serves the category tree. The list changes rarely, so it is
// cached with a long TTL and the cache is never invalidated by the API.
type CategoryService struct {
	repo     categoryRepository
	cache    roomListCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCategoryService constructs the category service.
func NewCategoryService(repo categoryRepository, cache roomListCache, cacheTTL time.Duration, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CategoryService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// List returns all categories.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	if s.cache != nil {
		var cached []models.Category
		if err := s.cache.Get(ctx, categoryListCacheKey, &cached); err == nil {
			return cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("category cache read failed", zap.Error(err))
		}
	}

	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, categoryListCacheKey, categories, s.cacheTTL); err != nil {
			s.logger.Warn("category cache write failed", zap.Error(err))
		}
	}
	return categories, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/commune-dev/commune-api/internal/models"
)

// CategoryRepository reads the category tree. Categories are seeded data and
// read-only from the API's point of view.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new instance of CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns all categories.
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	const query = `SELECT category_id, title, parent_category_id, created_at, updated_at FROM categories ORDER BY category_id ASC`
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

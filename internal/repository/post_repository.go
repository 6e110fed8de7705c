package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/commune-dev/commune-api/internal/models"
)

// PostRepository provides database access for board posts. Deletes are soft;
// every read filters deleted rows out.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository creates a new instance of PostRepository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts a post and fills in the generated id.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	const query = `INSERT INTO posts (user_id, category_id, title, thumbnail_image_url, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING post_id`
	if err := r.db.QueryRowxContext(ctx, query, post.UserID, post.CategoryID, post.Title, post.ThumbnailImageURL, post.Description, post.CreatedAt, post.UpdatedAt).Scan(&post.PostID); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// FindByID returns a live post by identifier.
func (r *PostRepository) FindByID(ctx context.Context, id int64) (*models.Post, error) {
	const query = `SELECT post_id, user_id, category_id, title, thumbnail_image_url, description, created_at, updated_at, deleted_at FROM posts WHERE post_id = $1 AND deleted_at IS NULL LIMIT 1`
	var post models.Post
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find post by id: %w", err)
	}
	return &post, nil
}

// List returns a page of live posts with the total count.
func (r *PostRepository) List(ctx context.Context, take, skip int) ([]models.Post, int, error) {
	if take <= 0 || take > 100 {
		take = 20
	}
	if skip < 0 {
		skip = 0
	}

	const listQuery = `SELECT post_id, user_id, category_id, title, thumbnail_image_url, description, created_at, updated_at, deleted_at FROM posts WHERE deleted_at IS NULL ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	var posts []models.Post
	if err := r.db.SelectContext(ctx, &posts, listQuery, take, skip); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM posts WHERE deleted_at IS NULL`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	return posts, total, nil
}

// Update rewrites the mutable fields of a post.
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = time.Now().UTC()
	const query = `UPDATE posts SET category_id = :category_id, title = :title, thumbnail_image_url = :thumbnail_image_url, description = :description, updated_at = :updated_at WHERE post_id = :post_id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

// SoftDelete stamps the post deleted without removing the row.
func (r *PostRepository) SoftDelete(ctx context.Context, id int64) error {
	const query = `UPDATE posts SET deleted_at = $2 WHERE post_id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete post: %w", err)
	}
	return nil
}

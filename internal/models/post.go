package models

import "time"

// Post is a soft-deletable board entry owned by a user.
type Post struct {
	PostID            int64      `db:"post_id" json:"postId"`
	UserID            int64      `db:"user_id" json:"userId"`
	CategoryID        int64      `db:"category_id" json:"categoryId"`
	Title             string     `db:"title" json:"title"`
	ThumbnailImageURL string     `db:"thumbnail_image_url" json:"thumbnailImageUrl"`
	Description       string     `db:"description" json:"description"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt         *time.Time `db:"deleted_at" json:"-"`
}

// Category groups posts; categories form a tree via ParentCategoryID.
type Category struct {
	CategoryID       int64     `db:"category_id" json:"categoryId"`
	Title            string    `db:"title" json:"title"`
	ParentCategoryID *int64    `db:"parent_category_id" json:"parentCategoryId"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

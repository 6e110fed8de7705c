package models

import "time"

// User represents an account stored in the users table. Password material is
// never serialized and only loaded by the credential finder used at login.
type User struct {
	UserID         int64     `db:"user_id" json:"userId"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	Salt           string    `db:"salt" json:"-"`
	Nickname       string    `db:"nickname" json:"nickname"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Sanitize returns a copy with password fields cleared, for crossing a
// service boundary without touching the stored row.
func (u *User) Sanitize() *User {
	sanitized := *u
	sanitized.HashedPassword = ""
	sanitized.Salt = ""
	return &sanitized
}

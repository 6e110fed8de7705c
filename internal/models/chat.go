package models

import "time"

// ChatRoom exists only while it has at least one member; creation inserts the
// creator's membership in the same transaction and the last leave removes the
// room.
type ChatRoom struct {
	ChatRoomID int64     `db:"chat_room_id" json:"chatRoomId"`
	Title      string    `db:"title" json:"title"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`

	Members []ChatRoomUser `db:"-" json:"chatRoomUsers,omitempty"`
}

// ChatRoomUser is a room membership row. CreatedAt marks the join time and is
// the visibility cutoff for chat history.
type ChatRoomUser struct {
	ChatRoomID int64     `db:"chat_room_id" json:"chatRoomId"`
	UserID     int64     `db:"user_id" json:"userId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Chat is an append-only chat message. UserID is nullable so messages survive
// author deletion.
type Chat struct {
	ChatID     int64     `db:"chat_id" json:"chatId"`
	ChatRoomID int64     `db:"chat_room_id" json:"chatRoomId"`
	UserID     *int64    `db:"user_id" json:"userId"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

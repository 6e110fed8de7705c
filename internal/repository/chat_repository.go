package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/commune-dev/commune-api/internal/models"
)

// ChatRepository appends and reads chat messages. Messages are append-only.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository creates a new instance of ChatRepository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Insert appends a message and fills in the generated id.
func (r *ChatRepository) Insert(ctx context.Context, roomID, userID int64, content string) (*models.Chat, error) {
	chat := &models.Chat{
		ChatRoomID: roomID,
		UserID:     &userID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	const query = `INSERT INTO chats (chat_room_id, user_id, content, created_at) VALUES ($1, $2, $3, $4) RETURNING chat_id`
	if err := r.db.QueryRowxContext(ctx, query, chat.ChatRoomID, chat.UserID, chat.Content, chat.CreatedAt).Scan(&chat.ChatID); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return chat, nil
}

// ListVisible returns the room's messages created strictly after the
// requesting user's current membership, newest first. A rejoined user never
// sees messages from a previous membership.
func (r *ChatRepository) ListVisible(ctx context.Context, roomID, userID int64) ([]models.Chat, error) {
	const query = `SELECT c.chat_id, c.chat_room_id, c.user_id, c.content, c.created_at
FROM chats c
INNER JOIN chat_room_users m ON m.chat_room_id = c.chat_room_id AND m.user_id = $2
WHERE c.chat_room_id = $1 AND c.created_at > m.created_at
ORDER BY c.created_at DESC`
	var chats []models.Chat
	if err := r.db.SelectContext(ctx, &chats, query, roomID, userID); err != nil {
		return nil, fmt.Errorf("list visible chats: %w", err)
	}
	return chats, nil
}

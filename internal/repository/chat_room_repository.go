package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/commune-dev/commune-api/internal/models"
)

// ChatRoomRepository manages rooms and their memberships. Room lifecycle is
// membership-driven: rooms are created together with their first member and
// removed when the last member leaves, both inside a single transaction.
type ChatRoomRepository struct {
	db *sqlx.DB
}

// NewChatRoomRepository creates a new instance of ChatRoomRepository.
func NewChatRoomRepository(db *sqlx.DB) *ChatRoomRepository {
	return &ChatRoomRepository{db: db}
}

// CreateWithMember inserts a room and the creator's membership atomically so
// a room never exists with zero members at rest.
func (r *ChatRoomRepository) CreateWithMember(ctx context.Context, title string, userID int64) (*models.ChatRoom, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create room: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	room := &models.ChatRoom{Title: title, CreatedAt: now, UpdatedAt: now}

	const insertRoom = `INSERT INTO chat_rooms (title, created_at, updated_at) VALUES ($1, $2, $3) RETURNING chat_room_id`
	if err = tx.QueryRowxContext(ctx, insertRoom, room.Title, room.CreatedAt, room.UpdatedAt).Scan(&room.ChatRoomID); err != nil {
		err = fmt.Errorf("insert chat room: %w", err)
		return nil, err
	}

	member := models.ChatRoomUser{ChatRoomID: room.ChatRoomID, UserID: userID, CreatedAt: now}
	const insertMember = `INSERT INTO chat_room_users (chat_room_id, user_id, created_at) VALUES ($1, $2, $3)`
	if _, err = tx.ExecContext(ctx, insertMember, member.ChatRoomID, member.UserID, member.CreatedAt); err != nil {
		err = fmt.Errorf("insert creator membership: %w", err)
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create room: %w", err)
	}

	room.Members = []models.ChatRoomUser{member}
	return room, nil
}

// List returns every room with its members, newest room first.
func (r *ChatRoomRepository) List(ctx context.Context) ([]models.ChatRoom, error) {
	const roomQuery = `SELECT chat_room_id, title, created_at, updated_at FROM chat_rooms ORDER BY created_at DESC`
	var rooms []models.ChatRoom
	if err := r.db.SelectContext(ctx, &rooms, roomQuery); err != nil {
		return nil, fmt.Errorf("list chat rooms: %w", err)
	}
	if len(rooms) == 0 {
		return rooms, nil
	}

	const memberQuery = `SELECT chat_room_id, user_id, created_at FROM chat_room_users ORDER BY created_at ASC`
	var members []models.ChatRoomUser
	if err := r.db.SelectContext(ctx, &members, memberQuery); err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}

	byRoom := make(map[int64][]models.ChatRoomUser, len(rooms))
	for _, m := range members {
		byRoom[m.ChatRoomID] = append(byRoom[m.ChatRoomID], m)
	}
	for i := range rooms {
		rooms[i].Members = byRoom[rooms[i].ChatRoomID]
	}
	return rooms, nil
}

// InsertMember adds a membership row. Foreign-key violations surface to the
// caller so a vanished room can be reported as not found.
func (r *ChatRoomRepository) InsertMember(ctx context.Context, roomID, userID int64) (*models.ChatRoomUser, error) {
	member := &models.ChatRoomUser{ChatRoomID: roomID, UserID: userID, CreatedAt: time.Now().UTC()}
	const query = `INSERT INTO chat_room_users (chat_room_id, user_id, created_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, member.ChatRoomID, member.UserID, member.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}
	return member, nil
}

// MemberExists reports whether the user currently belongs to the room.
func (r *ChatRoomRepository) MemberExists(ctx context.Context, roomID, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM chat_room_users WHERE chat_room_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, roomID, userID); err != nil {
		return false, fmt.Errorf("membership exists: %w", err)
	}
	return exists, nil
}

// ListMembershipsByUser returns every room membership for a user. The
// realtime gateway uses it to rehydrate transport rooms on reconnect.
func (r *ChatRoomRepository) ListMembershipsByUser(ctx context.Context, userID int64) ([]models.ChatRoomUser, error) {
	const query = `SELECT chat_room_id, user_id, created_at FROM chat_room_users WHERE user_id = $1 ORDER BY created_at ASC`
	var members []models.ChatRoomUser
	if err := r.db.SelectContext(ctx, &members, query, userID); err != nil {
		return nil, fmt.Errorf("list memberships by user: %w", err)
	}
	return members, nil
}

// RemoveMemberAndCollapse deletes the membership and, when the room is left
// empty, the room itself. Delete, count and conditional room delete run in
// one transaction so a concurrent join cannot land in a deleted room.
// Returns sql.ErrNoRows when no membership existed.
func (r *ChatRoomRepository) RemoveMemberAndCollapse(ctx context.Context, roomID, userID int64) (roomDeleted bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin leave room: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const deleteMember = `DELETE FROM chat_room_users WHERE chat_room_id = $1 AND user_id = $2`
	res, err := tx.ExecContext(ctx, deleteMember, roomID, userID)
	if err != nil {
		err = fmt.Errorf("delete membership: %w", err)
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("delete membership rows affected: %w", err)
		return false, err
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return false, err
	}

	const countMembers = `SELECT COUNT(*) FROM chat_room_users WHERE chat_room_id = $1`
	var remaining int
	if err = tx.GetContext(ctx, &remaining, countMembers, roomID); err != nil {
		err = fmt.Errorf("count members: %w", err)
		return false, err
	}

	if remaining == 0 {
		const deleteRoom = `DELETE FROM chat_rooms WHERE chat_room_id = $1`
		if _, err = tx.ExecContext(ctx, deleteRoom, roomID); err != nil {
			err = fmt.Errorf("delete empty room: %w", err)
			return false, err
		}
		roomDeleted = true
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit leave room: %w", err)
	}
	return roomDeleted, nil
}

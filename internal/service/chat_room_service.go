package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
	"github.com/commune-dev/commune-api/pkg/database"
	appErrors "github.com/commune-dev/commune-api/pkg/errors"
)

const roomListCacheKey = "chatrooms:list"

type chatRoomRepository interface {
	CreateWithMember(ctx context.Context, title string, userID int64) (*models.ChatRoom, error)
	List(ctx context.Context) ([]models.ChatRoom, error)
	InsertMember(ctx context.Context, roomID, userID int64) (*models.ChatRoomUser, error)
	MemberExists(ctx context.Context, roomID, userID int64) (bool, error)
	ListMembershipsByUser(ctx context.Context, userID int64) ([]models.ChatRoomUser, error)
	RemoveMemberAndCollapse(ctx context.Context, roomID, userID int64) (bool, error)
}

type roomListCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LeaveResult reports what happened when a user left a room.
type LeaveResult struct {
	ChatRoomID  int64
	UserID      int64
	RoomDeleted bool
}

// ChatRoomService manages room lifecycle and membership. The room list is
// cached briefly in Redis and invalidated on every mutation.
type ChatRoomService struct {
	repo      chatRoomRepository
	cache     roomListCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatRoomService constructs the chat room service.
func NewChatRoomService(repo chatRoomRepository, cache roomListCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ChatRoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Second
	}
	return &ChatRoomService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// CreateRoom creates a room with the creator as its first member.
func (s *ChatRoomService) CreateRoom(ctx context.Context, req models.CreateChatRoomPayload, userID int64) (*models.ChatRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	room, err := s.repo.CreateWithMember(ctx, req.Title, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create chat room")
	}

	s.invalidateList(ctx)
	return room, nil
}

// ListRooms returns every room with its members, serving from cache when a
// fresh copy exists.
func (s *ChatRoomService) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	if s.cache != nil {
		var cached []models.ChatRoom
		if err := s.cache.Get(ctx, roomListCacheKey, &cached); err == nil {
			return cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("room list cache read failed", zap.Error(err))
		}
	}

	rooms, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chat rooms")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, roomListCacheKey, rooms, s.cacheTTL); err != nil {
			s.logger.Warn("room list cache write failed", zap.Error(err))
		}
	}
	return rooms, nil
}

// Join adds the user to a room. Joining twice is rejected, which keeps the
// membership row and therefore the visibility cutoff intact.
func (s *ChatRoomService) Join(ctx context.Context, roomID, userID int64) (*models.ChatRoomUser, error) {
	member, err := s.repo.InsertMember(ctx, roomID, userID)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntry, "already in chat room")
		}
		if _, ok := database.ForeignKeyViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not found chat room")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join chat room")
	}

	s.invalidateList(ctx)
	return member, nil
}

// Leave removes the user's membership, collapsing the room when it empties.
func (s *ChatRoomService) Leave(ctx context.Context, roomID, userID int64) (*LeaveResult, error) {
	roomDeleted, err := s.repo.RemoveMemberAndCollapse(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotJoined, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave chat room")
	}

	s.invalidateList(ctx)
	return &LeaveResult{ChatRoomID: roomID, UserID: userID, RoomDeleted: roomDeleted}, nil
}

// ValidateMembership fails unless the user currently belongs to the room.
func (s *ChatRoomService) ValidateMembership(ctx context.Context, roomID, userID int64) error {
	exists, err := s.repo.MemberExists(ctx, roomID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if !exists {
		return appErrors.Clone(appErrors.ErrNotJoined, "")
	}
	return nil
}

// Memberships returns every room the user belongs to.
func (s *ChatRoomService) Memberships(ctx context.Context, userID int64) ([]models.ChatRoomUser, error) {
	members, err := s.repo.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list memberships")
	}
	return members, nil
}

func (s *ChatRoomService) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, roomListCacheKey); err != nil {
		s.logger.Warn("room list cache invalidation failed", zap.Error(err))
	}
}

package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
	appErrors "github.com/commune-dev/commune-api/pkg/errors"
)

type chatRepository interface {
	Insert(ctx context.Context, roomID, userID int64, content string) (*models.Chat, error)
	ListVisible(ctx context.Context, roomID, userID int64) ([]models.Chat, error)
}

type membershipValidator interface {
	ValidateMembership(ctx context.Context, roomID, userID int64) error
}

// ChatService appends and reads messages. Both operations are gated on a
// current membership in the target room.
type ChatService struct {
	repo      chatRepository
	rooms     membershipValidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatService constructs the chat service.
func NewChatService(repo chatRepository, rooms membershipValidator, validate *validator.Validate, logger *zap.Logger) *ChatService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{repo: repo, rooms: rooms, validator: validate, logger: logger}
}

// Append persists a message from a member of the room.
func (s *ChatService) Append(ctx context.Context, req models.SendChatPayload, userID int64) (*models.Chat, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chat payload")
	}

	if err := s.rooms.ValidateMembership(ctx, req.ChatRoomID, userID); err != nil {
		return nil, err
	}

	chat, err := s.repo.Insert(ctx, req.ChatRoomID, userID, req.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save chat")
	}
	return chat, nil
}

// ListVisible returns the messages the user may see in a room, newest first.
// Visibility starts at the user's current membership; history from before a
// rejoin stays hidden.
func (s *ChatService) ListVisible(ctx context.Context, roomID, userID int64) ([]models.Chat, error) {
	if err := s.rooms.ValidateMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	chats, err := s.repo.ListVisible(ctx, roomID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chats")
	}
	return chats, nil
}

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
	"github.com/commune-dev/commune-api/internal/service"
	appErrors "github.com/commune-dev/commune-api/pkg/errors"
	"github.com/commune-dev/commune-api/pkg/response"
)

// GatewayConfig tunes realtime behaviour.
type GatewayConfig struct {
	// RemoveMembershipsOnDisconnect makes a dropped socket equivalent to
	// leaving every room. Rooms emptied this way are removed.
	RemoveMembershipsOnDisconnect bool
	SendBufferSize                int
}

// Gateway terminates websocket connections and routes realtime events to the
// chat services. Every failed event is answered with exactly one Error event
// on the offending client; other clients never see the failure.
type Gateway struct {
	hub     *Hub
	users   *service.UserService
	rooms   *service.ChatRoomService
	chats   *service.ChatService
	metrics *service.MetricsService
	logger  *zap.Logger
	config  GatewayConfig

	upgrader websocket.Upgrader
}

// NewGateway constructs the realtime gateway.
func NewGateway(hub *Hub, users *service.UserService, rooms *service.ChatRoomService, chats *service.ChatService, metrics *service.MetricsService, logger *zap.Logger, config GatewayConfig) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		hub:     hub,
		users:   users,
		rooms:   rooms,
		chats:   chats,
		metrics: metrics,
		logger:  logger,
		config:  config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the handshake to a websocket connection. The connection
// identifies its user through the userId query parameter; a missing, garbled
// or unknown id is rejected before the upgrade.
func (g *Gateway) Handle(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	if _, err := g.users.Get(c.Request.Context(), userID); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(g, conn, userID, g.config.SendBufferSize)
	g.hub.Register(client)
	g.rehydrate(client)

	g.logger.Info("websocket connected", zap.Int64("userId", client.userID))

	go client.writePump()
	client.readPump()
}

// rehydrate resubscribes a reconnecting client to every room it still has a
// persisted membership in, so broadcasts resume without an explicit rejoin.
func (g *Gateway) rehydrate(client *Client) {
	memberships, err := g.rooms.Memberships(context.Background(), client.userID)
	if err != nil {
		g.logger.Warn("membership rehydration failed", zap.Int64("userId", client.userID), zap.Error(err))
		return
	}
	for _, m := range memberships {
		g.hub.Subscribe(client, m.ChatRoomID)
	}
}

func (g *Gateway) dispatch(client *Client, envelope models.RealtimeEnvelope) {
	ctx := context.Background()
	g.metrics.ObserveRealtimeEvent(envelope.Event)

	var err error
	switch envelope.Event {
	case models.EventCreateChatRoom:
		err = g.handleCreateRoom(ctx, client, envelope.Data)
	case models.EventGetChatRoomList:
		err = g.handleGetRoomList(ctx, client)
	case models.EventJoinChatRoom:
		err = g.handleJoinRoom(ctx, client, envelope.Data)
	case models.EventLeaveChatRoom:
		err = g.handleLeaveRoom(ctx, client, envelope.Data)
	case models.EventSendChat:
		err = g.handleSendChat(ctx, client, envelope.Data)
	case models.EventGetChatList:
		err = g.handleGetChatList(ctx, client, envelope.Data)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "unknown event")
	}

	if err != nil {
		g.metrics.ObserveRealtimeError()
		client.sendEvent(models.NewRealtimeEvent(models.EventError, models.RealtimeErrorPayload{
			Message: appErrors.FromError(err).Message,
		}))
	}
}

func (g *Gateway) handleCreateRoom(ctx context.Context, client *Client, data json.RawMessage) error {
	var payload models.CreateChatRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "malformed event data")
	}

	room, err := g.rooms.CreateRoom(ctx, payload, client.userID)
	if err != nil {
		return err
	}

	g.hub.Subscribe(client, room.ChatRoomID)
	g.hub.BroadcastAll(models.NewRealtimeEvent(models.EventCreateChatRoom, room))
	g.broadcastRoomList(ctx)
	return nil
}

func (g *Gateway) handleGetRoomList(ctx context.Context, client *Client) error {
	rooms, err := g.rooms.ListRooms(ctx)
	if err != nil {
		return err
	}
	client.sendEvent(models.NewRealtimeEvent(models.EventChatRoomList, models.ChatRoomListPayload{List: rooms}))
	return nil
}

func (g *Gateway) handleJoinRoom(ctx context.Context, client *Client, data json.RawMessage) error {
	var payload models.RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "malformed event data")
	}

	member, err := g.rooms.Join(ctx, payload.ChatRoomID, client.userID)
	if err != nil {
		return err
	}

	// Subscribe before announcing so the joiner sees its own join event.
	g.hub.Subscribe(client, payload.ChatRoomID)
	g.hub.BroadcastToRoom(payload.ChatRoomID, models.NewRealtimeEvent(models.EventJoinChatRoom, member))
	g.broadcastRoomList(ctx)
	return nil
}

func (g *Gateway) handleLeaveRoom(ctx context.Context, client *Client, data json.RawMessage) error {
	var payload models.RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "malformed event data")
	}

	result, err := g.rooms.Leave(ctx, payload.ChatRoomID, client.userID)
	if err != nil {
		return err
	}

	// The leaver is still subscribed here, so the notice reaches both the
	// leaver and the remaining members.
	g.hub.BroadcastToRoom(payload.ChatRoomID, models.NewRealtimeEvent(models.EventLeaveChatRoom, models.LeaveChatRoomNotice{
		ChatRoomID: result.ChatRoomID,
		UserID:     result.UserID,
	}))
	g.hub.Unsubscribe(client, payload.ChatRoomID)
	g.broadcastRoomList(ctx)
	return nil
}

func (g *Gateway) handleSendChat(ctx context.Context, client *Client, data json.RawMessage) error {
	var payload models.SendChatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "malformed event data")
	}

	chat, err := g.chats.Append(ctx, payload, client.userID)
	if err != nil {
		return err
	}

	g.hub.BroadcastToRoom(chat.ChatRoomID, models.NewRealtimeEvent(models.EventChat, chat))
	return nil
}

func (g *Gateway) handleGetChatList(ctx context.Context, client *Client, data json.RawMessage) error {
	var payload models.RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "malformed event data")
	}

	chats, err := g.chats.ListVisible(ctx, payload.ChatRoomID, client.userID)
	if err != nil {
		return err
	}

	client.sendEvent(models.NewRealtimeEvent(models.EventChatList, models.ChatListPayload{List: chats}))
	return nil
}

// handleDisconnect runs when the read pump exits. Depending on configuration
// the dropped socket either keeps its memberships for rehydration on the next
// connect, or leaves every room as if each had been left explicitly.
func (g *Gateway) handleDisconnect(client *Client) {
	ctx := context.Background()
	mirrored := g.hub.Unregister(client)
	g.logger.Info("websocket disconnected", zap.Int64("userId", client.userID))

	if !g.config.RemoveMembershipsOnDisconnect {
		return
	}

	// Persisted memberships drive the cleanup; a failed rehydration leaves
	// the transport mirror empty, so the mirror is only a fallback when the
	// membership read fails.
	roomIDs := mirrored
	if memberships, err := g.rooms.Memberships(ctx, client.userID); err == nil {
		roomIDs = make([]int64, 0, len(memberships))
		for _, m := range memberships {
			roomIDs = append(roomIDs, m.ChatRoomID)
		}
	} else {
		g.logger.Warn("disconnect membership read failed", zap.Int64("userId", client.userID), zap.Error(err))
	}

	left := false
	for _, roomID := range roomIDs {
		result, err := g.rooms.Leave(ctx, roomID, client.userID)
		if err != nil {
			if !appErrors.Is(err, appErrors.ErrNotJoined) {
				g.logger.Warn("disconnect leave failed", zap.Int64("userId", client.userID), zap.Int64("chatRoomId", roomID), zap.Error(err))
			}
			continue
		}
		left = true
		g.hub.BroadcastToRoom(roomID, models.NewRealtimeEvent(models.EventLeaveChatRoom, models.LeaveChatRoomNotice{
			ChatRoomID: result.ChatRoomID,
			UserID:     result.UserID,
		}))
	}

	if left {
		g.broadcastRoomList(ctx)
	}
}

func (g *Gateway) broadcastRoomList(ctx context.Context) {
	rooms, err := g.rooms.ListRooms(ctx)
	if err != nil {
		g.logger.Warn("room list broadcast failed", zap.Error(err))
		return
	}
	g.hub.BroadcastAll(models.NewRealtimeEvent(models.EventChatRoomList, models.ChatRoomListPayload{List: rooms}))
}

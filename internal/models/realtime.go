package models

import "encoding/json"

// Realtime event names. Client commands and server notifications share the
// same envelope shape: {"event": ..., "data": ...}.
const (
	EventCreateChatRoom  = "CreateChatRoom"
	EventGetChatRoomList = "GetChatRoomList"
	EventChatRoomList    = "ChatRoomList"
	EventJoinChatRoom    = "JoinChatRoom"
	EventLeaveChatRoom   = "LeaveChatRoom"
	EventSendChat        = "SendChat"
	EventChat            = "Chat"
	EventGetChatList     = "GetChatList"
	EventChatList        = "ChatList"
	EventError           = "Error"
)

// RealtimeEnvelope frames every websocket message in both directions.
type RealtimeEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewRealtimeEvent marshals data into an outbound envelope. Marshal failures
// are programmer errors; the envelope is sent with empty data in that case.
func NewRealtimeEvent(event string, data interface{}) RealtimeEnvelope {
	raw, err := json.Marshal(data)
	if err != nil {
		return RealtimeEnvelope{Event: event}
	}
	return RealtimeEnvelope{Event: event, Data: raw}
}

// CreateChatRoomPayload is the client command creating a room.
type CreateChatRoomPayload struct {
	Title string `json:"title" validate:"required,max=50"`
}

// RoomPayload addresses a single room for join/leave/history commands.
type RoomPayload struct {
	ChatRoomID int64 `json:"chatRoomId" validate:"required"`
}

// SendChatPayload is the client command appending a message.
type SendChatPayload struct {
	ChatRoomID int64  `json:"chatRoomId" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

// LeaveChatRoomNotice is broadcast to the leaver and the remaining members.
type LeaveChatRoomNotice struct {
	ChatRoomID int64 `json:"chatRoomId"`
	UserID     int64 `json:"userId"`
}

// ChatRoomListPayload wraps the room list for broadcast.
type ChatRoomListPayload struct {
	List []ChatRoom `json:"list"`
}

// ChatListPayload wraps visible chat history for the requester.
type ChatListPayload struct {
	List []Chat `json:"list"`
}

// RealtimeErrorPayload is the single structured failure notification shape.
type RealtimeErrorPayload struct {
	Message string `json:"message"`
}

package ws

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
	"github.com/commune-dev/commune-api/internal/service"
)

type roomKey struct {
	room int64
	user int64
}

type fakeRoomStore struct {
	mu      sync.Mutex
	rooms   map[int64]models.ChatRoom
	members map[roomKey]models.ChatRoomUser
	nextID  int64
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{
		rooms:   make(map[int64]models.ChatRoom),
		members: make(map[roomKey]models.ChatRoomUser),
	}
}

func (f *fakeRoomStore) CreateWithMember(ctx context.Context, title string, userID int64) (*models.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	now := time.Now().UTC()
	room := models.ChatRoom{ChatRoomID: f.nextID, Title: title, CreatedAt: now, UpdatedAt: now}
	f.rooms[room.ChatRoomID] = room
	member := models.ChatRoomUser{ChatRoomID: room.ChatRoomID, UserID: userID, CreatedAt: now}
	f.members[roomKey{room.ChatRoomID, userID}] = member
	room.Members = []models.ChatRoomUser{member}
	return &room, nil
}

func (f *fakeRoomStore) List(ctx context.Context) ([]models.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ChatRoom, 0, len(f.rooms))
	for _, room := range f.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatRoomID > out[j].ChatRoomID })
	return out, nil
}

func (f *fakeRoomStore) InsertMember(ctx context.Context, roomID, userID int64) (*models.ChatRoomUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[roomID]; !ok {
		return nil, &pq.Error{Code: "23503"}
	}
	key := roomKey{roomID, userID}
	if _, ok := f.members[key]; ok {
		return nil, &pq.Error{Code: "23505"}
	}
	member := models.ChatRoomUser{ChatRoomID: roomID, UserID: userID, CreatedAt: time.Now().UTC()}
	f.members[key] = member
	return &member, nil
}

func (f *fakeRoomStore) MemberExists(ctx context.Context, roomID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.members[roomKey{roomID, userID}]
	return ok, nil
}

func (f *fakeRoomStore) ListMembershipsByUser(ctx context.Context, userID int64) ([]models.ChatRoomUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatRoomUser
	for key, member := range f.members {
		if key.user == userID {
			out = append(out, member)
		}
	}
	return out, nil
}

func (f *fakeRoomStore) RemoveMemberAndCollapse(ctx context.Context, roomID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := roomKey{roomID, userID}
	if _, ok := f.members[key]; !ok {
		return false, sql.ErrNoRows
	}
	delete(f.members, key)
	for k := range f.members {
		if k.room == roomID {
			return false, nil
		}
	}
	delete(f.rooms, roomID)
	return true, nil
}

type fakeChatStore struct {
	mu     sync.Mutex
	chats  []models.Chat
	nextID int64
}

func (f *fakeChatStore) Insert(ctx context.Context, roomID, userID int64, content string) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	uid := userID
	chat := models.Chat{ChatID: f.nextID, ChatRoomID: roomID, UserID: &uid, Content: content, CreatedAt: time.Now().UTC()}
	f.chats = append(f.chats, chat)
	return &chat, nil
}

func (f *fakeChatStore) ListVisible(ctx context.Context, roomID, userID int64) ([]models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Chat
	for i := len(f.chats) - 1; i >= 0; i-- {
		if f.chats[i].ChatRoomID == roomID {
			out = append(out, f.chats[i])
		}
	}
	return out, nil
}

// fakeWSUserStore treats every positive user id as registered.
type fakeWSUserStore struct{}

func (fakeWSUserStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, sql.ErrNoRows
	}
	return &models.User{UserID: id}, nil
}

func (fakeWSUserStore) UpdateNickname(ctx context.Context, id int64, nickname string) (int64, error) {
	return 1, nil
}

type gatewayFixture struct {
	gateway *Gateway
	hub     *Hub
	rooms   *fakeRoomStore
	chats   *fakeChatStore
}

func newGatewayFixture(t *testing.T, removeOnDisconnect bool) *gatewayFixture {
	t.Helper()
	roomStore := newFakeRoomStore()
	chatStore := &fakeChatStore{}

	roomSvc := service.NewChatRoomService(roomStore, nil, time.Second, validator.New(), zap.NewNop())
	chatSvc := service.NewChatService(chatStore, roomSvc, validator.New(), zap.NewNop())
	userSvc := service.NewUserService(fakeWSUserStore{}, validator.New(), zap.NewNop())

	hub := NewHub(zap.NewNop(), nil)
	gateway := NewGateway(hub, userSvc, roomSvc, chatSvc, nil, zap.NewNop(), GatewayConfig{
		RemoveMembershipsOnDisconnect: removeOnDisconnect,
		SendBufferSize:                16,
	})
	return &gatewayFixture{gateway: gateway, hub: hub, rooms: roomStore, chats: chatStore}
}

func (fx *gatewayFixture) connect(t *testing.T, userID int64) *Client {
	t.Helper()
	c := newClient(fx.gateway, nil, userID, 16)
	fx.hub.Register(c)
	fx.gateway.rehydrate(c)
	return c
}

func event(t *testing.T, name string, payload interface{}) models.RealtimeEnvelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.RealtimeEnvelope{Event: name, Data: raw}
}

func drain(t *testing.T, c *Client, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		readEnvelope(t, c)
	}
}

func TestGatewayCreateChatRoom(t *testing.T) {
	fx := newGatewayFixture(t, true)
	creator := fx.connect(t, 7)
	observer := fx.connect(t, 8)

	fx.gateway.dispatch(creator, event(t, models.EventCreateChatRoom, models.CreateChatRoomPayload{Title: "general"}))

	// Everyone hears about the new room, then receives the refreshed list.
	for _, c := range []*Client{creator, observer} {
		envelope := readEnvelope(t, c)
		require.Equal(t, models.EventCreateChatRoom, envelope.Event)
		var room models.ChatRoom
		require.NoError(t, json.Unmarshal(envelope.Data, &room))
		require.Equal(t, "general", room.Title)

		envelope = readEnvelope(t, c)
		require.Equal(t, models.EventChatRoomList, envelope.Event)
		var payload models.ChatRoomListPayload
		require.NoError(t, json.Unmarshal(envelope.Data, &payload))
		require.Len(t, payload.List, 1)
		require.Equal(t, "general", payload.List[0].Title)
	}
	require.Equal(t, 1, fx.hub.RoomSubscribers(1))
}

func TestGatewaySendChatRequiresMembership(t *testing.T) {
	fx := newGatewayFixture(t, true)
	creator := fx.connect(t, 7)
	outsider := fx.connect(t, 8)

	fx.gateway.dispatch(creator, event(t, models.EventCreateChatRoom, models.CreateChatRoomPayload{Title: "general"}))
	drain(t, creator, 2)
	drain(t, outsider, 2)

	fx.gateway.dispatch(outsider, event(t, models.EventSendChat, models.SendChatPayload{ChatRoomID: 1, Content: "hi"}))

	envelope := readEnvelope(t, outsider)
	require.Equal(t, models.EventError, envelope.Event)
	var payload models.RealtimeErrorPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	require.Equal(t, "join chat room first", payload.Message)
	requireNoFrame(t, outsider)
	requireNoFrame(t, creator)
}

func TestGatewayJoinAndChat(t *testing.T) {
	fx := newGatewayFixture(t, true)
	creator := fx.connect(t, 7)
	joiner := fx.connect(t, 8)

	fx.gateway.dispatch(creator, event(t, models.EventCreateChatRoom, models.CreateChatRoomPayload{Title: "general"}))
	drain(t, creator, 2)
	drain(t, joiner, 2)

	fx.gateway.dispatch(joiner, event(t, models.EventJoinChatRoom, models.RoomPayload{ChatRoomID: 1}))

	// Room members, the joiner included, see the join before the list refresh.
	for _, c := range []*Client{creator, joiner} {
		envelope := readEnvelope(t, c)
		require.Equal(t, models.EventJoinChatRoom, envelope.Event)
		var member models.ChatRoomUser
		require.NoError(t, json.Unmarshal(envelope.Data, &member))
		require.Equal(t, int64(8), member.UserID)
		require.Equal(t, models.EventChatRoomList, readEnvelope(t, c).Event)
	}

	fx.gateway.dispatch(joiner, event(t, models.EventSendChat, models.SendChatPayload{ChatRoomID: 1, Content: "hello"}))

	for _, c := range []*Client{creator, joiner} {
		envelope := readEnvelope(t, c)
		require.Equal(t, models.EventChat, envelope.Event)
		var chat models.Chat
		require.NoError(t, json.Unmarshal(envelope.Data, &chat))
		require.Equal(t, "hello", chat.Content)
	}
}

func TestGatewayLeaveChatRoom(t *testing.T) {
	fx := newGatewayFixture(t, true)
	creator := fx.connect(t, 7)
	joiner := fx.connect(t, 8)

	fx.gateway.dispatch(creator, event(t, models.EventCreateChatRoom, models.CreateChatRoomPayload{Title: "general"}))
	drain(t, creator, 2)
	drain(t, joiner, 2)
	fx.gateway.dispatch(joiner, event(t, models.EventJoinChatRoom, models.RoomPayload{ChatRoomID: 1}))
	drain(t, creator, 2)
	drain(t, joiner, 2)

	fx.gateway.dispatch(joiner, event(t, models.EventLeaveChatRoom, models.RoomPayload{ChatRoomID: 1}))

	// Both sides get the leave notice, then the refreshed room list.
	for _, c := range []*Client{creator, joiner} {
		envelope := readEnvelope(t, c)
		require.Equal(t, models.EventLeaveChatRoom, envelope.Event)
		var notice models.LeaveChatRoomNotice
		require.NoError(t, json.Unmarshal(envelope.Data, &notice))
		require.Equal(t, int64(8), notice.UserID)
		require.Equal(t, models.EventChatRoomList, readEnvelope(t, c).Event)
	}
	require.Equal(t, 1, fx.hub.RoomSubscribers(1))

	exists, err := fx.rooms.MemberExists(context.Background(), 1, 8)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGatewayLastLeaveDeletesRoom(t *testing.T) {
	fx := newGatewayFixture(t, true)
	creator := fx.connect(t, 7)

	fx.gateway.dispatch(creator, event(t, models.EventCreateChatRoom, models.CreateChatRoomPayload{Title: "ephemeral"}))
	drain(t, creator, 2)

	fx.gateway.dispatch(creator, event(t, models.EventLeaveChatRoom, models.RoomPayload{ChatRoomID: 1}))
	require.Equal(t, models.EventLeaveChatRoom, readEnvelope(t, creator).Event)

	envelope := readEnvelope(t, creator)
	require.Equal(t, models.EventChatRoomList, envelope.Event)
	var payload models.ChatRoomListPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	require.Empty(t, payload.List)
}

func TestGatewayGetChatListOnlyForRequester(t *testing.T) {
	fx := newGatewayFixture(t, true)
	creator := fx.connect(t, 7)

	fx.gateway.dispatch(creator, event(t, models.EventCreateChatRoom, models.CreateChatRoomPayload{Title: "general"}))
	drain(t, creator, 2)
	fx.gateway.dispatch(creator, event(t, models.EventSendChat, models.SendChatPayload{ChatRoomID: 1, Content: "hello"}))
	drain(t, creator, 1)

	fx.gateway.dispatch(creator, event(t, models.EventGetChatList, models.RoomPayload{ChatRoomID: 1}))

	envelope := readEnvelope(t, creator)
	require.Equal(t, models.EventChatList, envelope.Event)
	var payload models.ChatListPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	require.Len(t, payload.List, 1)
}

func TestGatewayUnknownEvent(t *testing.T) {
	fx := newGatewayFixture(t, true)
	client := fx.connect(t, 7)

	fx.gateway.dispatch(client, models.RealtimeEnvelope{Event: "Teleport"})

	envelope := readEnvelope(t, client)
	require.Equal(t, models.EventError, envelope.Event)
	requireNoFrame(t, client)
}

func TestGatewayDuplicateJoinReportsError(t *testing.T) {
	fx := newGatewayFixture(t, true)
	creator := fx.connect(t, 7)

	fx.gateway.dispatch(creator, event(t, models.EventCreateChatRoom, models.CreateChatRoomPayload{Title: "general"}))
	drain(t, creator, 2)

	fx.gateway.dispatch(creator, event(t, models.EventJoinChatRoom, models.RoomPayload{ChatRoomID: 1}))

	envelope := readEnvelope(t, creator)
	require.Equal(t, models.EventError, envelope.Event)
	var payload models.RealtimeErrorPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	require.Equal(t, "already in chat room", payload.Message)
	requireNoFrame(t, creator)
}

func TestGatewayDisconnectRemovesMemberships(t *testing.T) {
	fx := newGatewayFixture(t, true)
	client := fx.connect(t, 7)

	fx.gateway.dispatch(client, event(t, models.EventCreateChatRoom, models.CreateChatRoomPayload{Title: "general"}))
	drain(t, client, 2)

	fx.gateway.handleDisconnect(client)

	memberships, err := fx.rooms.ListMembershipsByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Empty(t, memberships)
	require.Empty(t, fx.rooms.rooms)
}

func TestGatewayDisconnectCleansUnmirroredMemberships(t *testing.T) {
	fx := newGatewayFixture(t, true)

	// Membership persisted while the socket never subscribed to the room,
	// as happens when rehydration fails at connect time.
	_, err := fx.gateway.rooms.CreateRoom(context.Background(), models.CreateChatRoomPayload{Title: "general"}, 7)
	require.NoError(t, err)

	client := newClient(fx.gateway, nil, 7, 16)
	fx.hub.Register(client)

	fx.gateway.handleDisconnect(client)

	memberships, err := fx.rooms.ListMembershipsByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Empty(t, memberships)
	require.Empty(t, fx.rooms.rooms)
}

func TestGatewayDisconnectKeepsMembershipsWhenDisabled(t *testing.T) {
	fx := newGatewayFixture(t, false)
	client := fx.connect(t, 7)

	fx.gateway.dispatch(client, event(t, models.EventCreateChatRoom, models.CreateChatRoomPayload{Title: "general"}))
	drain(t, client, 2)

	fx.gateway.handleDisconnect(client)

	memberships, err := fx.rooms.ListMembershipsByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, memberships, 1)

	// A reconnect resubscribes to the surviving room.
	again := fx.connect(t, 7)
	require.Equal(t, 1, fx.hub.RoomSubscribers(1))
	fx.hub.Unregister(again)
}

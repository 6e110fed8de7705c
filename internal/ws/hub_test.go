package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
)

func newTestClient(t *testing.T, hub *Hub, userID int64) *Client {
	t.Helper()
	gw := &Gateway{hub: hub, logger: zap.NewNop()}
	c := newClient(gw, nil, userID, 8)
	hub.Register(c)
	return c
}

func readEnvelope(t *testing.T, c *Client) models.RealtimeEnvelope {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var envelope models.RealtimeEnvelope
		require.NoError(t, json.Unmarshal(payload, &envelope))
		return envelope
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return models.RealtimeEnvelope{}
	}
}

func requireNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("unexpected frame: %s", payload)
	default:
	}
}

func TestHubBroadcastToRoomReachesOnlySubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	member := newTestClient(t, hub, 7)
	outsider := newTestClient(t, hub, 8)

	hub.Subscribe(member, 1)
	hub.BroadcastToRoom(1, models.NewRealtimeEvent(models.EventChat, models.Chat{ChatRoomID: 1, Content: "hi"}))

	envelope := readEnvelope(t, member)
	require.Equal(t, models.EventChat, envelope.Event)
	requireNoFrame(t, outsider)
}

func TestHubBroadcastAll(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	a := newTestClient(t, hub, 7)
	b := newTestClient(t, hub, 8)

	hub.BroadcastAll(models.NewRealtimeEvent(models.EventChatRoomList, models.ChatRoomListPayload{}))

	require.Equal(t, models.EventChatRoomList, readEnvelope(t, a).Event)
	require.Equal(t, models.EventChatRoomList, readEnvelope(t, b).Event)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := newTestClient(t, hub, 7)

	hub.Subscribe(c, 1)
	hub.Unsubscribe(c, 1)
	hub.BroadcastToRoom(1, models.NewRealtimeEvent(models.EventChat, nil))

	requireNoFrame(t, c)
	require.Zero(t, hub.RoomSubscribers(1))
}

func TestHubUnregisterReportsRooms(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := newTestClient(t, hub, 7)

	hub.Subscribe(c, 1)
	hub.Subscribe(c, 2)

	roomIDs := hub.Unregister(c)
	require.ElementsMatch(t, []int64{1, 2}, roomIDs)

	// Dropped clients swallow further broadcasts without panicking.
	hub.BroadcastAll(models.NewRealtimeEvent(models.EventChatRoomList, nil))
	require.Nil(t, hub.Unregister(c))
}

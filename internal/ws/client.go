package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one authenticated websocket connection.
type Client struct {
	gateway *Gateway
	conn    *websocket.Conn
	send    chan []byte
	userID  int64

	mu     sync.Mutex
	closed bool
}

func newClient(gateway *Gateway, conn *websocket.Conn, userID int64, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		gateway: gateway,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		userID:  userID,
	}
}

// enqueue hands a frame to the write pump. Frames to a closed or saturated
// client are dropped; a saturated send buffer means the peer stopped reading
// and the read pump will tear the connection down shortly.
func (c *Client) enqueue(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.gateway.logger.Warn("dropping frame for slow client", zap.Int64("userId", c.userID))
	}
}

// sendEvent marshals and enqueues an event for this client only.
func (c *Client) sendEvent(event models.RealtimeEnvelope) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.gateway.logger.Error("marshal client event", zap.Error(err))
		return
	}
	c.enqueue(payload)
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.gateway.handleDisconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gateway.logger.Debug("websocket read failed", zap.Int64("userId", c.userID), zap.Error(err))
			}
			return
		}

		var envelope models.RealtimeEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Event == "" {
			c.sendEvent(models.NewRealtimeEvent(models.EventError, models.RealtimeErrorPayload{Message: "malformed event"}))
			continue
		}

		c.gateway.dispatch(c, envelope)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

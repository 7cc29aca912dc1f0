package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"whiteboard/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Client is one websocket connection. Its ID is process-unique and dies with
// the transport session; a reconnecting peer is a brand-new identity.
type Client struct {
	ID   string
	Conn *websocket.Conn

	mu     sync.Mutex
	hook   func(models.WSFrame)
	rooms  map[string]struct{}
	closed bool

	out chan models.WSFrame
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:    uuid.New().String(),
		Conn:  conn,
		rooms: make(map[string]struct{}),
		out:   make(chan models.WSFrame, sendBuffer),
	}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send enqueues a frame for delivery. Delivery is best-effort: a frame is
// dropped when the peer's queue is full, and never buffered across a
// disconnect. Never blocks, so callers may hold a room lock.
func (c *Client) Send(frame models.WSFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(frame)
		return
	}
	if c.Conn == nil || c.closed {
		return
	}
	select {
	case c.out <- frame:
	default:
	}
}

// Close releases the outbound queue and stops the write pump. Subsequent
// sends are dropped. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

// WritePump drains the outbound queue to the websocket, one writer goroutine
// per connection so per-recipient ordering holds. Runs until Close or a
// write failure.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.out:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// JoinedRoom records membership so disconnect cleanup can enumerate every
// room this connection belongs to.
func (c *Client) JoinedRoom(roomID string) {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) LeftRoom(roomID string) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whiteboard/internal/models"
)

// Presence receives room lifecycle notifications, e.g. for the Redis-backed
// room directory. All methods must be non-blocking or fast.
type Presence interface {
	RoomOpened(roomID string)
	RoomClosed(roomID string)
	RoomOccupancy(roomID string, count int)
}

// Hub is the per-connection protocol handler: it decodes inbound frames,
// mutates room state through the registry and owns disconnect cleanup. One
// Hub serves every connection of the process.
//
// Trust boundary: any connection supplying a valid room id can address that
// room; membership is not enforced on room-scoped operations beyond the
// cases the protocol defines (cursor moves are dropped for non-members).
type Hub struct {
	registry *Registry
	presence Presence
	log      *zap.Logger
}

func NewHub(log *zap.Logger, presence Presence) *Hub {
	return &Hub{
		registry: NewRegistry(),
		presence: presence,
		log:      log,
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// Connected marks a transport session as live. Pair with Disconnected.
func (h *Hub) Connected(c *Client) {
	incConnections()
	h.log.Info("client connected", zap.String("connId", c.ID))
}

// Disconnected performs leave cleanup for every room the connection still
// belongs to, then releases the connection.
func (h *Hub) Disconnected(c *Client) {
	for _, roomID := range c.Rooms() {
		h.leave(c, roomID)
	}
	c.Close()
	decConnections()
	h.log.Info("client disconnected", zap.String("connId", c.ID))
}

// HandleFrame applies one inbound event. Malformed payloads are rejected at
// this decode boundary and answered with an error frame; they are never
// partially applied. A bad event never corrupts room state or stops the
// connection's read loop.
func (h *Hub) HandleFrame(c *Client, frame models.WSFrame) {
	countEvent(frame.Type)

	switch frame.Type {
	case models.EvtJoinRoom:
		var req models.JoinRequest
		if err := decode(frame.Data, &req); err != nil {
			h.reject(c, frame.Type, err)
			return
		}
		h.join(c, frame.RoomID, req.UserName)

	case models.EvtLeaveRoom:
		h.leave(c, frame.RoomID)

	case models.EvtClientDraw:
		var op models.DrawOp
		if err := decode(frame.Data, &op); err != nil {
			h.reject(c, frame.Type, err)
			return
		}
		if room, ok := h.registry.Get(frame.RoomID); ok {
			room.Draw(c, op)
		}

	case models.EvtCursorMove:
		var move models.CursorMove
		if err := decode(frame.Data, &move); err != nil {
			h.reject(c, frame.Type, err)
			return
		}
		if room, ok := h.registry.Get(frame.RoomID); ok {
			room.MoveCursor(c, move.X, move.Y)
		}

	case models.EvtClearCanvas:
		if room, ok := h.registry.Get(frame.RoomID); ok {
			room.ClearCanvas()
		}

	case models.EvtCodeChange:
		var change models.CodeChange
		if err := decode(frame.Data, &change); err != nil {
			h.reject(c, frame.Type, err)
			return
		}
		if room, ok := h.registry.Get(frame.RoomID); ok {
			room.SetCode(c, change.Code)
		}

	case models.EvtGetCodeHistory:
		if room, ok := h.registry.Get(frame.RoomID); ok {
			room.SendCode(c)
		} else {
			// Unknown room reads resolve to empty state so clients can
			// always resynchronize.
			c.Send(models.WSFrame{Type: models.EvtCodeHistory, RoomID: frame.RoomID, Data: ""})
		}

	case models.EvtGetDrawHistory:
		if room, ok := h.registry.Get(frame.RoomID); ok {
			room.SendDrawHistory(c)
		} else {
			c.Send(models.WSFrame{Type: models.EvtDrawingHistory, RoomID: frame.RoomID, Data: []models.DrawOp{}})
		}

	case models.EvtSendMessage:
		var msg models.ChatMessage
		if err := decode(frame.Data, &msg); err != nil {
			h.reject(c, frame.Type, err)
			return
		}
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		if msg.Timestamp == "" {
			msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}
		if room, ok := h.registry.Get(frame.RoomID); ok {
			room.Chat(msg)
		}

	default:
		c.Send(errFrame("unknown_type"))
	}
}

func (h *Hub) join(c *Client, roomID, userName string) {
	room := h.registry.Join(roomID, c, userName)
	c.JoinedRoom(roomID)
	h.log.Info("client joined room",
		zap.String("connId", c.ID),
		zap.String("roomId", roomID),
		zap.String("userName", userName))

	if h.presence != nil {
		count := room.ParticipantCount()
		if count == 1 {
			h.presence.RoomOpened(roomID)
		}
		h.presence.RoomOccupancy(roomID, count)
	}
}

func (h *Hub) leave(c *Client, roomID string) {
	left, closed := h.registry.Leave(roomID, c.ID)
	c.LeftRoom(roomID)
	if !left {
		return
	}
	h.log.Info("client left room",
		zap.String("connId", c.ID),
		zap.String("roomId", roomID))

	if h.presence == nil {
		return
	}
	if closed {
		h.presence.RoomClosed(roomID)
		return
	}
	if room, ok := h.registry.Get(roomID); ok {
		h.presence.RoomOccupancy(roomID, room.ParticipantCount())
	}
}

func (h *Hub) reject(c *Client, eventType string, err error) {
	h.log.Warn("malformed event",
		zap.String("connId", c.ID),
		zap.String("type", eventType),
		zap.Error(err))
	c.Send(errFrame("malformed_payload"))
}

type validator interface{ Validate() error }

// decode re-marshals an envelope payload into its typed form, then runs the
// payload's own schema check.
func decode(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return err
	}
	if v, ok := out.(validator); ok {
		return v.Validate()
	}
	return nil
}

func errFrame(msg string) models.WSFrame {
	return models.WSFrame{Type: models.EvtError, Data: msg}
}

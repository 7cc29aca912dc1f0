package models

import "fmt"

// Client -> server event names.
const (
	EvtJoinRoom       = "join-room"
	EvtLeaveRoom      = "leave-room"
	EvtClientDraw     = "client-draw"
	EvtCursorMove     = "cursor-move"
	EvtClearCanvas    = "clear-canvas"
	EvtCodeChange     = "client-code-change"
	EvtGetCodeHistory = "get-code-history"
	EvtGetDrawHistory = "get-drawing-history"
	EvtSendMessage    = "send-message"
)

// Server -> client event names. Clear-canvas is echoed under its inbound name.
const (
	EvtUpdateParticipants = "update-participants"
	EvtDrawingHistory     = "drawing-history"
	EvtCodeHistory        = "code-history"
	EvtServerDraw         = "server-draw"
	EvtUpdateCursors      = "update-cursors"
	EvtServerCodeChange   = "server-code-change"
	EvtReceiveMessage     = "receive-message"
	EvtError              = "error"
)

// WSFrame is the wire envelope for every websocket event. RoomID scopes the
// event to one room; Data is decoded per Type.
type WSFrame struct {
	Type   string      `json:"type"`
	RoomID string      `json:"roomId,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

type DrawMode string

const (
	ModeDraw      DrawMode = "draw"
	ModeErase     DrawMode = "erase"
	ModeRectangle DrawMode = "rectangle"
	ModeCircle    DrawMode = "circle"
	ModeLine      DrawMode = "line"
)

// DrawOp is one whiteboard stroke or shape. Endpoints are normalized to the
// [0,1] canvas. Immutable once recorded.
type DrawOp struct {
	X0        float64  `json:"x0"`
	Y0        float64  `json:"y0"`
	X1        float64  `json:"x1"`
	Y1        float64  `json:"y1"`
	Color     string   `json:"color"`
	LineWidth float64  `json:"lineWidth"`
	Mode      DrawMode `json:"mode"`
}

func (d DrawOp) Validate() error {
	switch d.Mode {
	case ModeDraw, ModeErase, ModeRectangle, ModeCircle, ModeLine:
	default:
		return fmt.Errorf("invalid draw mode %q", d.Mode)
	}
	if d.Color == "" {
		return fmt.Errorf("color is required")
	}
	if d.LineWidth <= 0 {
		return fmt.Errorf("lineWidth must be positive")
	}
	return nil
}

// CursorPosition is one participant's pointer in room-relative coordinates.
type CursorPosition struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	UserName string  `json:"userName"`
}

type JoinRequest struct {
	UserName string `json:"userName"`
}

func (j JoinRequest) Validate() error {
	if j.UserName == "" {
		return fmt.Errorf("userName is required")
	}
	return nil
}

type CursorMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type CodeChange struct {
	Code string `json:"code"`
}

// ChatMessage is broadcast-only; the hub never stores it.
type ChatMessage struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

func (m ChatMessage) Validate() error {
	if m.Text == "" {
		return fmt.Errorf("text is required")
	}
	if m.Sender == "" {
		return fmt.Errorf("sender is required")
	}
	return nil
}

// Creator identifies who created a directory entry.
type Creator struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// RoomInfo is the directory metadata for a room. Advisory only: live
// membership is owned by the in-memory registry.
type RoomInfo struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Creator   Creator `json:"creator"`
	CreatedAt string  `json:"createdAt"`
	Occupancy int     `json:"occupancy"`
}

// Room lifecycle events published on the directory pub/sub channel.
const (
	RoomEventOpened    = "room-opened"
	RoomEventClosed    = "room-closed"
	RoomEventOccupancy = "room-occupancy"
)

type RoomEvent struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	Occupancy int    `json:"occupancy"`
	Timestamp string `json:"timestamp"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

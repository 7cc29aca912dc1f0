package session

import (
	"sync"

	"whiteboard/internal/models"
)

// Room holds the authoritative ephemeral state of one collaboration room:
// participant roster, draw-op log, cursor table and shared code buffer.
// Every operation mutates state and fans out its broadcasts under the same
// lock, so operations on one room are serialized and broadcasts are observed
// in mutation order. Fan-out is a non-blocking enqueue per recipient, so the
// lock is never held across a network write.
type Room struct {
	ID string

	mu           sync.Mutex
	clients      map[string]*Client
	participants map[string]string
	joinOrder    []string
	drawHistory  []models.DrawOp
	cursors      map[string]models.CursorPosition
	codeBuffer   string
}

func NewRoom(id string) *Room {
	return &Room{
		ID:           id,
		clients:      make(map[string]*Client),
		participants: make(map[string]string),
		cursors:      make(map[string]models.CursorPosition),
	}
}

// Join inserts (or renames, for a rejoin under the same connection) a
// participant, sends the current draw history and code buffer to the joiner
// and the updated participant list to the whole room.
func (r *Room) Join(c *Client, userName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, rejoin := r.participants[c.ID]; !rejoin {
		r.joinOrder = append(r.joinOrder, c.ID)
	}
	r.participants[c.ID] = userName
	r.clients[c.ID] = c

	c.Send(models.WSFrame{Type: models.EvtDrawingHistory, RoomID: r.ID, Data: r.historyLocked()})
	c.Send(models.WSFrame{Type: models.EvtCodeHistory, RoomID: r.ID, Data: r.codeBuffer})
	r.broadcastLocked(nil, models.WSFrame{Type: models.EvtUpdateParticipants, RoomID: r.ID, Data: r.namesLocked()})
}

// Leave removes a participant and its cursor and notifies the remaining
// members. No-op for a connection that never joined. Returns how many
// participants remain so the registry can retire an empty room.
func (r *Room) Leave(connID string) (left bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[connID]; !ok {
		return false, len(r.participants)
	}
	delete(r.participants, connID)
	delete(r.cursors, connID)
	delete(r.clients, connID)
	for i, id := range r.joinOrder {
		if id == connID {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}

	r.broadcastLocked(nil, models.WSFrame{Type: models.EvtUpdateParticipants, RoomID: r.ID, Data: r.namesLocked()})
	r.broadcastLocked(nil, models.WSFrame{Type: models.EvtUpdateCursors, RoomID: r.ID, Data: r.cursorsLocked()})
	return true, len(r.participants)
}

// Draw appends one op to the history and relays it to everyone except the
// sender, which already rendered locally.
func (r *Room) Draw(sender *Client, op models.DrawOp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawHistory = append(r.drawHistory, op)
	r.broadcastLocked(sender, models.WSFrame{Type: models.EvtServerDraw, RoomID: r.ID, Data: op})
}

// MoveCursor upserts the sender's pointer position and broadcasts the full
// cursor table. The update is silently dropped when the sender is not a
// participant, keeping the cursor table a subset of the roster.
func (r *Room) MoveCursor(sender *Client, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.participants[sender.ID]; ok {
		r.cursors[sender.ID] = models.CursorPosition{X: x, Y: y, UserName: name}
	}
	r.broadcastLocked(nil, models.WSFrame{Type: models.EvtUpdateCursors, RoomID: r.ID, Data: r.cursorsLocked()})
}

// ClearCanvas irreversibly resets the draw history and signals every member.
func (r *Room) ClearCanvas() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawHistory = nil
	r.broadcastLocked(nil, models.WSFrame{Type: models.EvtClearCanvas, RoomID: r.ID})
}

// SetCode replaces the code buffer, last writer wins, and relays the new text
// to everyone except the sender.
func (r *Room) SetCode(sender *Client, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codeBuffer = code
	r.broadcastLocked(sender, models.WSFrame{Type: models.EvtServerCodeChange, RoomID: r.ID, Data: code})
}

// Chat relays a message to every member, sender included: the sender renders
// from the echo, not optimistically. Nothing is stored.
func (r *Room) Chat(msg models.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(nil, models.WSFrame{Type: models.EvtReceiveMessage, RoomID: r.ID, Data: msg})
}

// SendDrawHistory replies to one connection with the current history, used
// to resynchronize without rejoining.
func (r *Room) SendDrawHistory(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Send(models.WSFrame{Type: models.EvtDrawingHistory, RoomID: r.ID, Data: r.historyLocked()})
}

func (r *Room) SendCode(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Send(models.WSFrame{Type: models.EvtCodeHistory, RoomID: r.ID, Data: r.codeBuffer})
}

// BroadcastAll delivers a frame to every current member.
func (r *Room) BroadcastAll(frame models.WSFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(nil, frame)
}

// Broadcast delivers a frame to every member except the sender.
func (r *Room) Broadcast(sender *Client, frame models.WSFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(sender, frame)
}

func (r *Room) ParticipantNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

func (r *Room) DrawHistory() []models.DrawOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.historyLocked()
}

func (r *Room) Cursors() map[string]models.CursorPosition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursorsLocked()
}

func (r *Room) Code() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codeBuffer
}

func (r *Room) broadcastLocked(sender *Client, frame models.WSFrame) {
	for _, c := range r.clients {
		if c == sender {
			continue
		}
		c.Send(frame)
	}
}

// namesLocked returns display names in join order.
func (r *Room) namesLocked() []string {
	names := make([]string, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		names = append(names, r.participants[id])
	}
	return names
}

func (r *Room) historyLocked() []models.DrawOp {
	out := make([]models.DrawOp, len(r.drawHistory))
	copy(out, r.drawHistory)
	return out
}

func (r *Room) cursorsLocked() map[string]models.CursorPosition {
	out := make(map[string]models.CursorPosition, len(r.cursors))
	for id, pos := range r.cursors {
		out[id] = pos
	}
	return out
}

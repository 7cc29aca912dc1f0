package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"whiteboard/internal/models"
)

type frameCapture struct {
	frames []models.WSFrame
}

func newFrameCapture() *frameCapture { return &frameCapture{} }

func (c *frameCapture) hook(frame models.WSFrame) { c.frames = append(c.frames, frame) }

func (c *frameCapture) list() []models.WSFrame {
	out := make([]models.WSFrame, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *frameCapture) ofType(t string) []models.WSFrame {
	var out []models.WSFrame
	for _, f := range c.frames {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

func (c *frameCapture) last(t *testing.T, typ string) models.WSFrame {
	t.Helper()
	frames := c.ofType(typ)
	if len(frames) == 0 {
		t.Fatalf("no %q frame captured, got %#v", typ, c.frames)
	}
	return frames[len(frames)-1]
}

func hookedClient() (*Client, *frameCapture) {
	c := NewClient(nil)
	capture := newFrameCapture()
	c.SetSendHook(capture.hook)
	return c, capture
}

func TestClientSendWithHook(t *testing.T) {
	client, capture := hookedClient()

	client.Send(models.WSFrame{Type: "ping"})

	got := capture.list()
	if len(got) != 1 || got[0].Type != "ping" {
		t.Fatalf("expected frame captured, got %#v", got)
	}
}

func TestClientSendWithoutConnDoesNotPanic(t *testing.T) {
	client := NewClient(nil)
	client.Send(models.WSFrame{Type: "noop"})
}

func TestClientIDsAreUnique(t *testing.T) {
	a := NewClient(nil)
	b := NewClient(nil)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
}

func TestClientRoomTracking(t *testing.T) {
	c := NewClient(nil)
	c.JoinedRoom("r1")
	c.JoinedRoom("r2")
	c.JoinedRoom("r1")
	if got := c.Rooms(); len(got) != 2 {
		t.Fatalf("expected 2 rooms, got %v", got)
	}
	c.LeftRoom("r1")
	if got := c.Rooms(); len(got) != 1 || got[0] != "r2" {
		t.Fatalf("expected [r2], got %v", got)
	}
}

func TestClientWritePumpDeliversFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan models.WSFrame, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err == nil {
			received <- frame
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	client := NewClient(conn)
	go client.WritePump()
	defer client.Close()
	client.Send(models.WSFrame{Type: "ping"})

	select {
	case frame := <-received:
		if frame.Type != "ping" {
			t.Fatalf("unexpected frame: %#v", frame)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected frame to be received")
	}
}

func TestRoomJoinBroadcastsRosterAndSyncsJoiner(t *testing.T) {
	room := NewRoom("r1")
	alice, aliceCap := hookedClient()
	bob, bobCap := hookedClient()

	room.Join(alice, "Alice")
	room.Join(bob, "Bob")

	history := bobCap.last(t, models.EvtDrawingHistory)
	if ops, ok := history.Data.([]models.DrawOp); !ok || len(ops) != 0 {
		t.Fatalf("expected empty history for joiner, got %#v", history.Data)
	}
	code := bobCap.last(t, models.EvtCodeHistory)
	if code.Data != "" {
		t.Fatalf("expected empty code buffer, got %#v", code.Data)
	}

	roster := aliceCap.last(t, models.EvtUpdateParticipants)
	names, ok := roster.Data.([]string)
	if !ok || len(names) != 2 || names[0] != "Alice" || names[1] != "Bob" {
		t.Fatalf("expected join-order roster [Alice Bob], got %#v", roster.Data)
	}
}

func TestRoomRejoinOverwritesName(t *testing.T) {
	room := NewRoom("r1")
	alice, _ := hookedClient()
	bob, bobCap := hookedClient()
	room.Join(alice, "Alice")
	room.Join(bob, "Bob")

	room.Join(alice, "Alicia")

	roster := bobCap.last(t, models.EvtUpdateParticipants)
	names := roster.Data.([]string)
	if len(names) != 2 || names[0] != "Alicia" || names[1] != "Bob" {
		t.Fatalf("expected rename in place, got %v", names)
	}
	if room.ParticipantCount() != 2 {
		t.Fatalf("rejoin must not add a participant, got %d", room.ParticipantCount())
	}
}

func TestRoomLeaveIsIdempotent(t *testing.T) {
	room := NewRoom("r1")
	alice, _ := hookedClient()
	room.Join(alice, "Alice")

	if left, remaining := room.Leave(alice.ID); !left || remaining != 0 {
		t.Fatalf("expected left=true remaining=0, got %v %d", left, remaining)
	}
	if left, _ := room.Leave(alice.ID); left {
		t.Fatalf("second leave must be a no-op")
	}
	if left, _ := room.Leave("never-joined"); left {
		t.Fatalf("leave for unknown connection must be a no-op")
	}
}

func TestRoomLeaveNotifiesRosterAndCursors(t *testing.T) {
	room := NewRoom("r1")
	alice, _ := hookedClient()
	bob, bobCap := hookedClient()
	room.Join(alice, "Alice")
	room.Join(bob, "Bob")
	room.MoveCursor(alice, 0.5, 0.5)

	room.Leave(alice.ID)

	roster := bobCap.last(t, models.EvtUpdateParticipants)
	if names := roster.Data.([]string); len(names) != 1 || names[0] != "Bob" {
		t.Fatalf("expected roster [Bob], got %#v", roster.Data)
	}
	cursors := bobCap.last(t, models.EvtUpdateCursors)
	if table := cursors.Data.(map[string]models.CursorPosition); len(table) != 0 {
		t.Fatalf("expected leaver's cursor removed, got %#v", table)
	}
}

func TestRoomDrawAppendsInOrderAndSkipsSender(t *testing.T) {
	room := NewRoom("r1")
	alice, aliceCap := hookedClient()
	bob, bobCap := hookedClient()
	room.Join(alice, "Alice")
	room.Join(bob, "Bob")

	first := models.DrawOp{X1: 1, Y1: 1, Color: "#000", LineWidth: 2, Mode: models.ModeDraw}
	second := models.DrawOp{X1: 0.5, Color: "#fff", LineWidth: 4, Mode: models.ModeErase}
	room.Draw(alice, first)
	room.Draw(bob, second)

	if got := bobCap.ofType(models.EvtServerDraw); len(got) != 1 || got[0].Data != first {
		t.Fatalf("bob should receive exactly alice's op, got %#v", got)
	}
	if got := aliceCap.ofType(models.EvtServerDraw); len(got) != 1 || got[0].Data != second {
		t.Fatalf("alice should receive exactly bob's op, got %#v", got)
	}

	history := room.DrawHistory()
	if len(history) != 2 || history[0] != first || history[1] != second {
		t.Fatalf("history must reflect arrival order, got %#v", history)
	}
}

func TestRoomClearCanvasResetsHistory(t *testing.T) {
	room := NewRoom("r1")
	alice, aliceCap := hookedClient()
	room.Join(alice, "Alice")
	room.Draw(alice, models.DrawOp{Color: "#000", LineWidth: 1, Mode: models.ModeDraw})

	room.ClearCanvas()

	if len(room.DrawHistory()) != 0 {
		t.Fatalf("expected empty history after clear")
	}
	if got := aliceCap.ofType(models.EvtClearCanvas); len(got) != 1 {
		t.Fatalf("clear signal must reach the sender too, got %#v", got)
	}
}

func TestRoomCursorMoveForNonParticipantIsDropped(t *testing.T) {
	room := NewRoom("r1")
	alice, aliceCap := hookedClient()
	room.Join(alice, "Alice")
	stranger, _ := hookedClient()

	room.MoveCursor(stranger, 0.3, 0.7)

	table := aliceCap.last(t, models.EvtUpdateCursors).Data.(map[string]models.CursorPosition)
	if len(table) != 0 {
		t.Fatalf("non-participant cursor must never appear, got %#v", table)
	}
}

func TestRoomCursorMoveUpserts(t *testing.T) {
	room := NewRoom("r1")
	alice, aliceCap := hookedClient()
	room.Join(alice, "Alice")

	room.MoveCursor(alice, 0.1, 0.2)
	room.MoveCursor(alice, 0.9, 0.8)

	table := aliceCap.last(t, models.EvtUpdateCursors).Data.(map[string]models.CursorPosition)
	pos, ok := table[alice.ID]
	if !ok || pos.X != 0.9 || pos.Y != 0.8 || pos.UserName != "Alice" {
		t.Fatalf("expected upserted cursor, got %#v", table)
	}
}

func TestRoomSetCodeLastWriterWins(t *testing.T) {
	room := NewRoom("r1")
	alice, _ := hookedClient()
	bob, bobCap := hookedClient()
	room.Join(alice, "Alice")
	room.Join(bob, "Bob")

	room.SetCode(alice, "let x=1")
	room.SetCode(bob, "let x=2")

	if room.Code() != "let x=2" {
		t.Fatalf("expected last write to win, got %q", room.Code())
	}
	if got := bobCap.ofType(models.EvtServerCodeChange); len(got) != 1 || got[0].Data != "let x=1" {
		t.Fatalf("bob should only see alice's change, got %#v", got)
	}
}

func TestRoomChatReachesEveryoneIncludingSender(t *testing.T) {
	room := NewRoom("r1")
	alice, aliceCap := hookedClient()
	bob, bobCap := hookedClient()
	room.Join(alice, "Alice")
	room.Join(bob, "Bob")

	msg := models.ChatMessage{ID: "m1", Text: "hi", Sender: "Alice", Timestamp: "2026-01-01T00:00:00Z"}
	room.Chat(msg)

	for name, capture := range map[string]*frameCapture{"alice": aliceCap, "bob": bobCap} {
		got := capture.ofType(models.EvtReceiveMessage)
		if len(got) != 1 || got[0].Data != msg {
			t.Fatalf("%s missing chat echo: %#v", name, got)
		}
	}
}

func TestRoomBroadcastSkipsSender(t *testing.T) {
	room := NewRoom("r1")
	frame := models.WSFrame{Type: "chat", Data: "hello"}

	c1, cap1 := hookedClient()
	c2, cap2 := hookedClient()
	sender, _ := hookedClient()

	room.Join(c1, "one")
	room.Join(c2, "two")
	room.Join(sender, "sender")
	sender.SetSendHook(func(models.WSFrame) { t.Fatal("sender should not receive broadcast") })

	room.Broadcast(sender, frame)

	if got := cap1.ofType("chat"); len(got) != 1 {
		t.Fatalf("client1 missing frame: %#v", cap1.list())
	}
	if got := cap2.ofType("chat"); len(got) != 1 {
		t.Fatalf("client2 missing frame: %#v", cap2.list())
	}
}

func TestRoomBroadcastAll(t *testing.T) {
	room := NewRoom("r1")
	frame := models.WSFrame{Type: "ping"}

	c1, cap1 := hookedClient()
	c2, cap2 := hookedClient()
	room.Join(c1, "one")
	room.Join(c2, "two")

	room.BroadcastAll(frame)

	if len(cap1.ofType("ping")) != 1 || len(cap2.ofType("ping")) != 1 {
		t.Fatalf("expected broadcast to all clients")
	}
}

func TestRegistryJoinIsAtomicCreate(t *testing.T) {
	reg := NewRegistry()
	alice, _ := hookedClient()

	room := reg.Join("r1", alice, "Alice")
	if room.ParticipantCount() != 1 {
		t.Fatalf("expected one participant after first join")
	}
	if got, ok := reg.Get("r1"); !ok || got != room {
		t.Fatalf("expected registered room")
	}
	if same := reg.Join("r1", alice, "Alice"); same != room {
		t.Fatalf("expected same room instance on rejoin")
	}
}

func TestRegistryLeaveRetiresEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	alice, _ := hookedClient()
	bob, _ := hookedClient()
	reg.Join("r1", alice, "Alice")
	reg.Join("r1", bob, "Bob")

	if left, closed := reg.Leave("r1", alice.ID); !left || closed {
		t.Fatalf("room must stay open while members remain")
	}
	if left, closed := reg.Leave("r1", bob.ID); !left || !closed {
		t.Fatalf("expected room closed on last leave")
	}
	if _, ok := reg.Get("r1"); ok {
		t.Fatalf("empty room must be absent from the registry")
	}
	if left, closed := reg.Leave("r1", bob.ID); left || closed {
		t.Fatalf("leave on a missing room must be a no-op")
	}
}

func TestRegistryFreshStateAfterEmptyCycle(t *testing.T) {
	reg := NewRegistry()
	alice, _ := hookedClient()
	room := reg.Join("r1", alice, "Alice")
	room.Draw(alice, models.DrawOp{Color: "#000", LineWidth: 1, Mode: models.ModeDraw})
	room.SetCode(alice, "stale")
	reg.Leave("r1", alice.ID)

	bob, _ := hookedClient()
	fresh := reg.Join("r1", bob, "Bob")
	if fresh == room {
		t.Fatalf("expected a fresh room instance after empty cycle")
	}
	if len(fresh.DrawHistory()) != 0 || fresh.Code() != "" {
		t.Fatalf("state must not leak across empty->active cycles")
	}
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	alice, _ := hookedClient()
	reg.Join("r1", alice, "Alice")
	reg.Remove("r1")
	reg.Remove("r1")
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestRegistryGetOrCreate(t *testing.T) {
	reg := NewRegistry()
	a := reg.GetOrCreate("r1")
	b := reg.GetOrCreate("r1")
	if a != b {
		t.Fatalf("expected same room instance")
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"whiteboard/internal/models"
	"whiteboard/internal/room_management"
	"whiteboard/internal/session"
	"whiteboard/internal/utils"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const maxFrameSize = 1024 * 1024

type Handlers struct {
	log       *zap.Logger
	hub       *session.Hub
	directory *room_management.Directory
	jwtSecret []byte
}

func NewHandlers(log *zap.Logger, directory *room_management.Directory, jwtSecret []byte) *Handlers {
	return &Handlers{
		log:       log,
		hub:       session.NewHub(log, directory),
		directory: directory,
		jwtSecret: jwtSecret,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// ListRooms returns every room directory entry.
func (h *Handlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.directory.ListRooms(r.Context())
	if err != nil {
		h.log.Error("list rooms failed", zap.Error(err))
		http.Error(w, "directory unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rooms)
}

// CreateRoom registers a new room directory entry. The creator comes from
// the bearer token when a JWT secret is configured; otherwise the entry is
// anonymous.
func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	creator, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "room name is required", http.StatusBadRequest)
		return
	}

	info, err := h.directory.CreateRoom(r.Context(), req.Name, creator)
	if err != nil {
		h.log.Error("create room failed", zap.Error(err))
		http.Error(w, "directory unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(info)
}

// GetRoom returns one directory entry.
func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	info, err := h.directory.GetRoom(r.Context(), roomID)
	if err != nil {
		h.log.Error("get room failed", zap.String("roomId", roomID), zap.Error(err))
		http.Error(w, "directory unavailable", http.StatusInternalServerError)
		return
	}
	if info == nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, info)
}

// CollabWS is the realtime endpoint. One socket may address any number of
// rooms; every event frame carries its room id.
func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := session.NewClient(conn)
	h.hub.Connected(client)
	go client.WritePump()
	defer h.hub.Disconnected(client)

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read failed", zap.String("connId", client.ID), zap.Error(err))
			}
			return
		}
		h.hub.HandleFrame(client, frame)
	}
}

// authenticate resolves the caller's identity from the Authorization header.
// With no JWT secret configured the endpoint is open and the creator is
// anonymous, mirroring the trust model of the event surface.
func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request) (models.Creator, bool) {
	if len(h.jwtSecret) == 0 {
		return models.Creator{Name: "anonymous"}, true
	}
	token, err := utils.ExtractTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return models.Creator{}, false
	}
	claims, err := utils.ValidateUserToken(h.jwtSecret, token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return models.Creator{}, false
	}
	return models.Creator{Name: claims.Name, Email: claims.Email}, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

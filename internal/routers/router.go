package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"whiteboard/internal/api"
	"whiteboard/internal/metrics"
	"whiteboard/internal/room_management"
)

func New(log *zap.Logger, directory *room_management.Directory, jwtSecret []byte, allowedOrigins []string) http.Handler {
	h := api.NewHandlers(log, directory, jwtSecret)
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))
	r.Use(metrics.Middleware("whiteboard"))

	r.Get("/api/v1/healthz", h.Health)

	r.Get("/api/v1/rooms", h.ListRooms)
	r.Post("/api/v1/rooms", h.CreateRoom)
	r.Get("/api/v1/rooms/{id}", h.GetRoom)

	r.Get("/ws", h.CollabWS)

	r.Handle("/metrics", metrics.Handler())

	return r
}

package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"whiteboard/internal/config"
	"whiteboard/internal/room_management"
	"whiteboard/internal/routers"
	"whiteboard/internal/utils"
)

var (
	listenAndServe = http.ListenAndServe
	exitFunc       = func(err error) { log.Fatal(err) }
)

func run(ctx context.Context) error {
	logger := utils.NewLogger()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	directory := room_management.NewDirectory(cfg.RedisAddr, logger)

	// Watch room lifecycle events in the background.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go directory.Subscribe(subCtx)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	r.Mount("/", routers.New(logger, directory, []byte(cfg.JWTSecret), cfg.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	addr := ":" + cfg.Port
	log.Printf("whiteboard-svc listening on %s", addr)
	return listenAndServe(addr, r)
}

func main() {
	if err := run(context.Background()); err != nil {
		exitFunc(err)
	}
}

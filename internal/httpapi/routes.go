package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blchelle/capstone/internal/hub"
	"github.com/blchelle/capstone/internal/store"
	"github.com/blchelle/capstone/internal/ws"
)

func SetupRoutes(h *hub.Hub, st store.Store, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/rooms", CreateRoom(h))
	r.Get("/races/{id}", GetRace(st))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, st, log))
	return r
}

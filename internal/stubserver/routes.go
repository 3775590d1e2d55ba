// Package stubserver is an in-memory stand-in for the real game server. It
// speaks the exact HTTP and channel surface the client expects, with a toy
// play policy instead of real rules, so the client is runnable and testable
// end to end without the production backend.
package stubserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Server struct {
	hub    *Hub
	rooms  *Rooms
	logger *zap.Logger
}

func New(ctx context.Context, logger *zap.Logger) *Server {
	return &Server{
		hub:    NewHub(ctx),
		rooms:  NewRooms(ctx),
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/game/create", s.createGame)
	r.Get("/api/game/open", s.listOpen)
	r.Get("/api/game/{id}/state", s.getState)
	r.Post("/api/game/{id}/join", s.joinGame)
	r.Post("/api/game/{id}/play", s.playCard)
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

// Shutdown stops both loops. In-flight handlers finish on their own.
func (s *Server) Shutdown() {
	s.hub.Inbox() <- ShutdownHub{}
	s.rooms.Inbox() <- ShutdownRooms{}
}

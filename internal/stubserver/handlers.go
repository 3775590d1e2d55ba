package stubserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pyramidclient/pkg/types"
)

func (s *Server) createGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode int `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	id := uuid.NewString()
	reply := make(chan error, 1)
	s.hub.Inbox() <- CreateGame{ID: id, Mode: req.Mode, Reply: reply}
	if err := <-reply; err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	s.logger.Info("game created", zap.String("gameId", id), zap.Int("mode", req.Mode))
	writeJSON(w, http.StatusCreated, map[string]string{"gameId": id})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	reply := make(chan snapshotReply, 1)
	s.hub.Inbox() <- GetSnapshot{ID: chi.URLParam(r, "id"), Reply: reply}
	res := <-reply
	if res.Err != nil {
		writeError(w, statusFor(res.Err), res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res.Snapshot)
}

func (s *Server) joinGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "missing playerId")
		return
	}

	reply := make(chan error, 1)
	s.hub.Inbox() <- JoinGame{ID: chi.URLParam(r, "id"), PlayerID: req.PlayerID, Reply: reply}
	if err := <-reply; err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) playCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID   string `json:"cardId"`
		PlayerID string `json:"playerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	reply := make(chan snapshotReply, 1)
	s.hub.Inbox() <- PlayCard{
		ID:       chi.URLParam(r, "id"),
		CardID:   req.CardID,
		PlayerID: req.PlayerID,
		Reply:    reply,
	}
	res := <-reply
	if res.Err != nil {
		writeError(w, statusFor(res.Err), res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res.Snapshot)
}

func (s *Server) listOpen(w http.ResponseWriter, _ *http.Request) {
	reply := make(chan []types.OpenGame, 1)
	s.hub.Inbox() <- ListOpen{Reply: reply}
	writeJSON(w, http.StatusOK, <-reply)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrGameFull), errors.Is(err, ErrAlreadyJoined):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

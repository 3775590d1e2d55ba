// Package session owns the authoritative game snapshot on the client side.
// The server decides everything; the store's job is to mirror it faithfully
// and never let a caller observe a half-applied update.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pyramidclient/internal/api"
	"pyramidclient/pkg/types"
)

var ErrNoSession = errors.New("no active session")
var ErrNoActivePlayer = errors.New("no active player")
var ErrPlayInFlight = errors.New("play already in flight")
var ErrSessionChanged = errors.New("session changed while request in flight")
var ErrUnsupportedMode = errors.New("unsupported game mode")

// Mode selects the deck size of a new game.
type Mode int

const (
	Mode32 Mode = 32
	Mode52 Mode = 52
)

// TurnMode picks how the acting player is resolved on Play. The two trust
// models are incompatible; a deployment chooses one, the store never guesses.
type TurnMode string

const (
	// ServerResolvedTurn sends the turnPlayer reported by the current
	// snapshot. The server trusts no client-supplied identity.
	ServerResolvedTurn TurnMode = "server"
	// ClientSuppliedTurn sends the identity bound at Join time.
	ClientSuppliedTurn TurnMode = "client"
)

// Store is the single source of truth for the current snapshot. All
// operations are single round trips that replace the snapshot wholesale on
// success and leave it untouched on failure.
type Store struct {
	client   *api.Client
	logger   *zap.Logger
	turnMode TurnMode

	mu       sync.Mutex
	gameID   string
	identity string // bound at Join; used only in ClientSuppliedTurn mode
	snapshot *types.GameSnapshot
	playing  bool
}

// Option configures a Store.
type Option func(*Store)

func WithTurnMode(m TurnMode) Option {
	return func(s *Store) { s.turnMode = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func New(client *api.Client, opts ...Option) *Store {
	s := &Store{
		client:   client,
		logger:   zap.NewNop(),
		turnMode: ServerResolvedTurn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current snapshot. The boolean is false
// before the first successful operation and after Reset. The board slices
// are shared with the stored value but never mutated in place — updates
// always swap the whole snapshot.
func (s *Store) Snapshot() (types.GameSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return types.GameSnapshot{}, false
	}
	return *s.snapshot, true
}

// GameID returns the active session id, or "" when there is none.
func (s *Store) GameID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID
}

// Create allocates a new session on the server and adopts its initial
// snapshot. Not idempotent, never retried: a failed create surfaces as-is.
func (s *Store) Create(ctx context.Context, mode Mode) (types.GameSnapshot, error) {
	if mode != Mode32 && mode != Mode52 {
		return types.GameSnapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedMode, mode)
	}

	var created struct {
		GameID string `json:"gameId"`
	}
	if err := s.client.Post(ctx, "/api/game/create", map[string]int{"mode": int(mode)}, &created); err != nil {
		return types.GameSnapshot{}, err
	}

	snap, err := s.fetchState(ctx, created.GameID)
	if err != nil {
		return types.GameSnapshot{}, err
	}

	s.adopt(created.GameID, "", snap)
	s.logger.Info("session created", zap.String("gameId", created.GameID), zap.Int("mode", int(mode)))
	return *snap, nil
}

// Join binds identity to the next open slot of an existing session, then
// fetches its snapshot. Which slot was assigned is never reconciled locally;
// the server's turnPlayer values are the only role information.
func (s *Store) Join(ctx context.Context, gameID, identity string) (types.GameSnapshot, error) {
	payload := map[string]string{"playerId": identity}
	if err := s.client.Post(ctx, "/api/game/"+gameID+"/join", payload, nil); err != nil {
		return types.GameSnapshot{}, err
	}

	snap, err := s.fetchState(ctx, gameID)
	if err != nil {
		return types.GameSnapshot{}, err
	}

	s.adopt(gameID, identity, snap)
	s.logger.Info("session joined", zap.String("gameId", gameID))
	return *snap, nil
}

// Load fetches the snapshot of an existing session without binding an
// identity. Used for reconnect/resume; no server-side effect.
func (s *Store) Load(ctx context.Context, gameID string) (types.GameSnapshot, error) {
	snap, err := s.fetchState(ctx, gameID)
	if err != nil {
		return types.GameSnapshot{}, err
	}

	s.mu.Lock()
	if gameID != s.gameID {
		s.identity = ""
		s.playing = false
	}
	s.gameID = gameID
	s.snapshot = snap
	s.mu.Unlock()

	s.logger.Info("session loaded", zap.String("gameId", gameID))
	return *snap, nil
}

// Play submits one card for the acting player and adopts the server's
// response wholesale. Legality and lock flags of every card can change as a
// side effect of one play, so the snapshot is never patched per field.
//
// At most one play is in flight per store; a second concurrent call fails
// fast with ErrPlayInFlight instead of racing a stale turnPlayer.
func (s *Store) Play(ctx context.Context, cardID string) (types.GameSnapshot, error) {
	s.mu.Lock()
	if s.gameID == "" || s.snapshot == nil {
		s.mu.Unlock()
		return types.GameSnapshot{}, ErrNoSession
	}
	if s.playing {
		s.mu.Unlock()
		return types.GameSnapshot{}, ErrPlayInFlight
	}

	var actor string
	switch s.turnMode {
	case ClientSuppliedTurn:
		actor = s.identity
	default:
		actor = s.snapshot.TurnPlayer
	}
	if actor == "" {
		// Precondition failure, checked before any network call.
		s.mu.Unlock()
		return types.GameSnapshot{}, ErrNoActivePlayer
	}

	gameID := s.gameID
	s.playing = true
	s.mu.Unlock()

	payload := map[string]string{"cardId": cardID, "playerId": actor}
	var next types.GameSnapshot
	err := s.client.Post(ctx, "/api/game/"+gameID+"/play", payload, &next)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gameID != gameID {
		// The session moved on while this request was in flight. Whatever
		// came back must not resurrect the abandoned session's state, and
		// the new session's own guard is not ours to clear.
		return types.GameSnapshot{}, ErrSessionChanged
	}
	s.playing = false

	if err != nil {
		return types.GameSnapshot{}, err
	}
	s.snapshot = &next
	return next, nil
}

// ListOpen fetches the sessions currently waiting for a second player.
func (s *Store) ListOpen(ctx context.Context) ([]types.OpenGame, error) {
	var open []types.OpenGame
	if err := s.client.Get(ctx, "/api/game/open", &open); err != nil {
		return nil, err
	}
	return open, nil
}

// Reset discards the current session. The next operation starts fresh; any
// response still in flight for the old session is dropped on arrival.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameID = ""
	s.identity = ""
	s.snapshot = nil
	s.playing = false
}

func (s *Store) fetchState(ctx context.Context, gameID string) (*types.GameSnapshot, error) {
	var snap types.GameSnapshot
	if err := s.client.Get(ctx, "/api/game/"+gameID+"/state", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) adopt(gameID, identity string, snap *types.GameSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameID = gameID
	s.identity = identity
	s.snapshot = snap
	s.playing = false
}

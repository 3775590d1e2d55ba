package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pyramidclient/internal/api"
	"pyramidclient/internal/stubserver"
	"pyramidclient/pkg/types"
)

// newStubStore runs the full stub backend behind httptest and returns a
// store talking to it.
func newStubStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := httptest.NewServer(stubserver.New(ctx, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)

	return New(api.New(srv.URL), opts...)
}

func TestCreate_Mode32_DealsFourByEight(t *testing.T) {
	store := newStubStore(t)

	snap, err := store.Create(context.Background(), Mode32)
	require.NoError(t, err)

	require.Len(t, snap.Board, 4)
	for _, row := range snap.Board {
		assert.Len(t, row, 8)
	}
	assert.Equal(t, types.Score{}, snap.Score)
	assert.NotEmpty(t, snap.TurnPlayer)
	assert.Equal(t, 3, snap.MaxDepth)
	assert.Equal(t, snap.GameID, store.GameID())
}

func TestCreate_Mode52_DealsFourByThirteen(t *testing.T) {
	store := newStubStore(t)

	snap, err := store.Create(context.Background(), Mode52)
	require.NoError(t, err)

	require.Len(t, snap.Board, 4)
	for _, row := range snap.Board {
		assert.Len(t, row, 13)
	}
}

func TestCreate_RejectsOtherModes(t *testing.T) {
	store := newStubStore(t)

	_, err := store.Create(context.Background(), Mode(48))
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestCreate_ThenLoad_SameDimensions(t *testing.T) {
	store := newStubStore(t)

	created, err := store.Create(context.Background(), Mode32)
	require.NoError(t, err)

	loaded, err := store.Load(context.Background(), created.GameID)
	require.NoError(t, err)
	assert.Equal(t, len(created.Board), len(loaded.Board))
	assert.Equal(t, len(created.Board[0]), len(loaded.Board[0]))
}

func TestJoin_FullGame_SurfacesRejectionUnchangedSnapshot(t *testing.T) {
	store := newStubStore(t)

	created, err := store.Create(context.Background(), Mode32)
	require.NoError(t, err)

	_, err = store.Join(context.Background(), created.GameID, "alice")
	require.NoError(t, err)
	_, err = store.Join(context.Background(), created.GameID, "bob")
	require.NoError(t, err)

	before, ok := store.Snapshot()
	require.True(t, ok)

	_, err = store.Join(context.Background(), created.GameID, "carol")
	var srvErr *api.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, http.StatusConflict, srvErr.Status)
	assert.Equal(t, "game full", srvErr.Reason)

	after, ok := store.Snapshot()
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestJoin_UnknownGame_NotFound(t *testing.T) {
	store := newStubStore(t)

	_, err := store.Join(context.Background(), "missing", "alice")
	var srvErr *api.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, http.StatusNotFound, srvErr.Status)
}

func TestPlay_ReplacesSnapshotWholesale(t *testing.T) {
	store := newStubStore(t)

	before, err := store.Create(context.Background(), Mode32)
	require.NoError(t, err)

	after, err := store.Play(context.Background(), firstPlayable(t, before))
	require.NoError(t, err)

	assert.Equal(t, before.TurnIndex+1, after.TurnIndex)
	assert.NotEqual(t, before.TurnPlayer, after.TurnPlayer)

	// The caller's old snapshot is untouched and the store holds the new one
	// in full — not a patch of the old board.
	assert.Equal(t, 0, before.TurnIndex)
	current, ok := store.Snapshot()
	require.True(t, ok)
	assert.Equal(t, after, current)
}

func TestPlay_NoSession(t *testing.T) {
	store := newStubStore(t)

	_, err := store.Play(context.Background(), "7-hearts")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestPlay_NoActivePlayer_MakesNoNetworkCall(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeSnapshot(w, types.GameSnapshot{GameID: "g1", TurnPlayer: ""})
	}))
	t.Cleanup(srv.Close)

	store := New(api.New(srv.URL))
	_, err := store.Load(context.Background(), "g1")
	require.NoError(t, err)
	loadCalls := calls.Load()

	_, err = store.Play(context.Background(), "7-hearts")
	assert.ErrorIs(t, err, ErrNoActivePlayer)
	assert.Equal(t, loadCalls, calls.Load(), "play must fail before any request")
}

func TestPlay_SecondCallWhileInFlightIsRejected(t *testing.T) {
	release := make(chan struct{})
	var playCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/game/g1/play" {
			playCalls.Add(1)
			<-release
		}
		writeSnapshot(w, types.GameSnapshot{GameID: "g1", TurnPlayer: "J1"})
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	store := New(api.New(srv.URL))
	_, err := store.Load(context.Background(), "g1")
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := store.Play(context.Background(), "a")
		firstDone <- err
	}()

	// Wait until the first play is parked inside the handler.
	require.Eventually(t, func() bool { return playCalls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	_, err = store.Play(context.Background(), "b")
	assert.ErrorIs(t, err, ErrPlayInFlight)

	release <- struct{}{}
	require.NoError(t, <-firstDone)
	assert.EqualValues(t, 1, playCalls.Load())
}

func TestPlay_LateResponseForAbandonedSessionIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	var oldPlays atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/game/old/play" {
			oldPlays.Add(1)
			<-release
			writeSnapshot(w, types.GameSnapshot{GameID: "old", TurnPlayer: "J2", TurnIndex: 99})
			return
		}
		switch r.URL.Path {
		case "/api/game/old/state":
			writeSnapshot(w, types.GameSnapshot{GameID: "old", TurnPlayer: "J1"})
		default:
			writeSnapshot(w, types.GameSnapshot{GameID: "new", TurnPlayer: "J1", TurnIndex: 7})
		}
	}))
	t.Cleanup(srv.Close)

	store := New(api.New(srv.URL))
	_, err := store.Load(context.Background(), "old")
	require.NoError(t, err)

	playDone := make(chan error, 1)
	go func() {
		_, err := store.Play(context.Background(), "a")
		playDone <- err
	}()
	require.Eventually(t, func() bool { return oldPlays.Load() == 1 },
		time.Second, 5*time.Millisecond)

	// Abandon the old session while the play is still in flight.
	_, err = store.Load(context.Background(), "new")
	require.NoError(t, err)

	close(release)
	assert.ErrorIs(t, <-playDone, ErrSessionChanged)

	// The late response must not resurrect the old session's state.
	snap, ok := store.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "new", snap.GameID)
	assert.Equal(t, 7, snap.TurnIndex)
}

func TestPlay_ClientSuppliedTurn_UsesJoinIdentity(t *testing.T) {
	var sentPlayer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/game/g1/play" {
			var req struct {
				PlayerID string `json:"playerId"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			sentPlayer = req.PlayerID
		}
		writeSnapshot(w, types.GameSnapshot{GameID: "g1", TurnPlayer: "J2"})
	}))
	t.Cleanup(srv.Close)

	store := New(api.New(srv.URL), WithTurnMode(ClientSuppliedTurn))
	_, err := store.Join(context.Background(), "g1", "alice")
	require.NoError(t, err)

	_, err = store.Play(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "alice", sentPlayer)
}

func TestPlay_ClientSuppliedTurn_WithoutJoinFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeSnapshot(w, types.GameSnapshot{GameID: "g1", TurnPlayer: "J1"})
	}))
	t.Cleanup(srv.Close)

	store := New(api.New(srv.URL), WithTurnMode(ClientSuppliedTurn))
	_, err := store.Load(context.Background(), "g1") // no identity bound
	require.NoError(t, err)

	_, err = store.Play(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNoActivePlayer)
}

func TestListOpen_OnlyJoinableGames(t *testing.T) {
	store := newStubStore(t)

	first, err := store.Create(context.Background(), Mode32)
	require.NoError(t, err)
	second, err := store.Create(context.Background(), Mode32)
	require.NoError(t, err)

	// Fill the first game.
	_, err = store.Join(context.Background(), first.GameID, "alice")
	require.NoError(t, err)
	_, err = store.Join(context.Background(), first.GameID, "bob")
	require.NoError(t, err)

	open, err := store.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.GameID, open[0].ID)
}

func TestReset_DiscardsSession(t *testing.T) {
	store := newStubStore(t)

	_, err := store.Create(context.Background(), Mode32)
	require.NoError(t, err)

	store.Reset()
	assert.Empty(t, store.GameID())
	_, ok := store.Snapshot()
	assert.False(t, ok)

	_, err = store.Play(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNoSession)
}

func writeSnapshot(w http.ResponseWriter, snap types.GameSnapshot) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func firstPlayable(t *testing.T, snap types.GameSnapshot) string {
	t.Helper()
	for _, row := range snap.Board {
		for _, card := range row {
			if card.Interactable() {
				return card.ID
			}
		}
	}
	t.Fatal("no playable card in snapshot")
	return ""
}

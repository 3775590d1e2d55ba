package stubserver

import (
	"context"

	"pyramidclient/pkg/types"
)

// The hub serializes all game access through one loop, so games themselves
// stay lock-free.

type HubMsg interface{ isHubMsg() }

type CreateGame struct {
	ID    string
	Mode  int
	Reply chan error
}

type GetSnapshot struct {
	ID    string
	Reply chan snapshotReply
}

type JoinGame struct {
	ID       string
	PlayerID string
	Reply    chan error
}

type PlayCard struct {
	ID       string
	CardID   string
	PlayerID string
	Reply    chan snapshotReply
}

type ListOpen struct {
	Reply chan []types.OpenGame
}

type ShutdownHub struct{}

type snapshotReply struct {
	Snapshot types.GameSnapshot
	Err      error
}

func (CreateGame) isHubMsg()  {}
func (GetSnapshot) isHubMsg() {}
func (JoinGame) isHubMsg()    {}
func (PlayCard) isHubMsg()    {}
func (ListOpen) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox  chan HubMsg
	games  map[string]*game
	order  []string // creation order, for a stable open-games listing
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		games:  make(map[string]*game),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateGame:
				g, err := newGame(msg.ID, msg.Mode)
				if err == nil {
					h.games[msg.ID] = g
					h.order = append(h.order, msg.ID)
				}
				msg.Reply <- err

			case GetSnapshot:
				g := h.games[msg.ID]
				if g == nil {
					msg.Reply <- snapshotReply{Err: ErrGameNotFound}
					break
				}
				msg.Reply <- snapshotReply{Snapshot: g.snapshot()}

			case JoinGame:
				g := h.games[msg.ID]
				if g == nil {
					msg.Reply <- ErrGameNotFound
					break
				}
				msg.Reply <- g.join(msg.PlayerID)

			case PlayCard:
				g := h.games[msg.ID]
				if g == nil {
					msg.Reply <- snapshotReply{Err: ErrGameNotFound}
					break
				}
				if err := g.play(msg.CardID, msg.PlayerID); err != nil {
					msg.Reply <- snapshotReply{Err: err}
					break
				}
				msg.Reply <- snapshotReply{Snapshot: g.snapshot()}

			case ListOpen:
				open := []types.OpenGame{}
				for _, id := range h.order {
					if g := h.games[id]; g != nil && g.open() {
						open = append(open, types.OpenGame{ID: id})
					}
				}
				msg.Reply <- open

			case ShutdownHub:
				clear(h.games)
				h.order = nil
				h.cancel()
			}
		}
	}
}

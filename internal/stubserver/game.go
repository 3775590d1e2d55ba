package stubserver

import (
	"errors"
	"math/rand"

	"pyramidclient/pkg/types"
)

var ErrGameNotFound = errors.New("game not found")
var ErrGameFull = errors.New("game full")
var ErrAlreadyJoined = errors.New("player already joined")
var ErrNotYourTurn = errors.New("not your turn")
var ErrUnknownCard = errors.New("unknown card")
var ErrCardNotPlayable = errors.New("card not playable")
var ErrBadMode = errors.New("mode must be 32 or 52")

const (
	playerOne = "J1"
	playerTwo = "J2"
	boardRows = 4
)

var suits = []string{"hearts", "diamonds", "clubs", "spades"}

var values32 = []string{"7", "8", "9", "10", "J", "Q", "K", "A"}
var values52 = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// game is one stub session. All access is serialized by the hub loop, so
// there is no lock here.
type game struct {
	id         string
	board      [][]types.Card // rows x cols, depth == row index
	removed    map[string]bool
	players    []string
	turnPlayer string
	turnIndex  int
	score      types.Score
}

// newGame deals a fresh board. The layout is arbitrary stub policy: a full
// grid where only the deepest remaining card of each column is playable.
// Clients only ever read the flags, so any consistent policy works.
func newGame(id string, mode int) (*game, error) {
	var values []string
	switch mode {
	case 32:
		values = values32
	case 52:
		values = values52
	default:
		return nil, ErrBadMode
	}

	deck := make([]types.Card, 0, len(values)*len(suits))
	for _, v := range values {
		for _, s := range suits {
			deck = append(deck, types.Card{
				ID:    v + "-" + s,
				Value: v,
				Suit:  s,
				Power: v == "A",
			})
		}
	}
	rand.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	cols := len(deck) / boardRows
	board := make([][]types.Card, boardRows)
	for r := 0; r < boardRows; r++ {
		board[r] = make([]types.Card, cols)
		for c := 0; c < cols; c++ {
			card := deck[r*cols+c]
			card.Depth = r
			board[r][c] = card
		}
	}

	return &game{
		id:      id,
		board:   board,
		removed: map[string]bool{},
		// The creator has not joined yet, but a turn order exists from the
		// start so turnPlayer is never empty in a well-formed snapshot.
		turnPlayer: playerOne,
	}, nil
}

func (g *game) join(playerID string) error {
	for _, p := range g.players {
		if p == playerID {
			return ErrAlreadyJoined
		}
	}
	if len(g.players) >= 2 {
		return ErrGameFull
	}
	g.players = append(g.players, playerID)
	return nil
}

func (g *game) open() bool {
	return len(g.players) < 2
}

// play removes one card for the acting player. The flags of every remaining
// card are recomputed on the next snapshot, which is exactly the behavior
// the client is built to absorb.
func (g *game) play(cardID, playerID string) error {
	if playerID != g.turnPlayer {
		return ErrNotYourTurn
	}

	card, ok := g.find(cardID)
	if !ok || g.removed[cardID] {
		return ErrUnknownCard
	}
	if !g.playableAt(card.Depth, g.columnOf(cardID)) {
		return ErrCardNotPlayable
	}

	g.removed[cardID] = true
	if g.turnPlayer == playerOne {
		g.score.Player1++
		g.turnPlayer = playerTwo
	} else {
		g.score.Player2++
		g.turnPlayer = playerOne
	}
	g.turnIndex++
	return nil
}

func (g *game) find(cardID string) (types.Card, bool) {
	for _, row := range g.board {
		for _, card := range row {
			if card.ID == cardID {
				return card, true
			}
		}
	}
	return types.Card{}, false
}

func (g *game) columnOf(cardID string) int {
	for _, row := range g.board {
		for c, card := range row {
			if card.ID == cardID {
				return c
			}
		}
	}
	return -1
}

// playableAt reports whether the cell at (row, col) is the deepest card of
// its column still on the board.
func (g *game) playableAt(row, col int) bool {
	if col < 0 {
		return false
	}
	for r := row + 1; r < len(g.board); r++ {
		if !g.removed[g.board[r][col].ID] {
			return false
		}
	}
	return true
}

// snapshot assembles the full authoritative state with freshly computed
// flags. Removed cards stay in the grid, locked and unplayable, so the board
// shape is stable across the session.
func (g *game) snapshot() types.GameSnapshot {
	rows := len(g.board)
	board := make([][]types.Card, rows)
	rootLocked := false

	for r, row := range g.board {
		board[r] = make([]types.Card, len(row))
		for c, card := range row {
			if g.removed[card.ID] {
				card.Playable = false
				card.Locked = true
			} else {
				card.Playable = g.playableAt(r, c)
				card.Locked = !card.Playable
			}
			if r == 0 && card.Locked {
				rootLocked = true
			}
			board[r][c] = card
		}
	}

	return types.GameSnapshot{
		GameID:     g.id,
		Board:      board,
		Score:      g.score,
		TurnPlayer: g.turnPlayer,
		TurnIndex:  g.turnIndex,
		MaxDepth:   rows - 1,
		RootLocked: rootLocked,
	}
}

package types

// Card is a single board cell as the server reports it. The playable and
// locked flags are server-computed; the client reads them, never derives them.
type Card struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	Suit     string `json:"suit"`
	Depth    int    `json:"depth"`
	Playable bool   `json:"playable"`
	Locked   bool   `json:"locked"`
	Power    bool   `json:"power,omitempty"`
}

// Interactable reports whether the card may currently be selected.
// This is the only card-level rule the client applies itself.
func (c Card) Interactable() bool {
	return c.Playable && !c.Locked
}

type Score struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// GameSnapshot is the complete authoritative game state as last returned by
// the server. Every successful operation replaces the previous snapshot
// wholesale; nothing in here is ever patched field by field.
type GameSnapshot struct {
	GameID     string   `json:"gameId"`
	Board      [][]Card `json:"board"`
	Score      Score    `json:"score"`
	TurnPlayer string   `json:"turnPlayer"` // "" means no actor may play
	TurnIndex  int      `json:"turnIndex"`
	MaxDepth   int      `json:"maxDepth"`
	RootLocked bool     `json:"rootLocked"`
}

// OpenGame is one entry of the open-session listing.
type OpenGame struct {
	ID string `json:"id"`
}

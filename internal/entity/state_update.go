package entity

// StateUpdate is the authoritative state payload a participant pushes during
// play. Pointer fields distinguish "absent" from a zero value so the merge
// only touches what the client actually sent. Board and turn data are opaque
// here: move legality is the client game engine's concern.
type StateUpdate struct {
	Board          []string       `json:"board,omitempty"`
	CurrentPlayer  *string        `json:"currentPlayer,omitempty"`
	Phase          *string        `json:"phase,omitempty"`
	State          *string        `json:"state,omitempty"`
	PiecesToPlace  map[string]int `json:"piecesToPlace,omitempty"`
	CapturedPieces map[string]int `json:"capturedPieces,omitempty"`
	Winner         *string        `json:"winner,omitempty"`
	WinnerScore    *int           `json:"winnerScore,omitempty"`
	GameOver       *bool          `json:"gameOver,omitempty"`
}

// IsTerminal - reports whether the payload signals game end: a non-empty
// winner or an explicit game-over flag.
func (that *StateUpdate) IsTerminal() bool {
	if that.Winner != nil && *that.Winner != "" {
		return true
	}

	return that.GameOver != nil && *that.GameOver
}

package entity

import (
	"sync"
	"time"

	"github.com/getohub/morrisapi/internal/apperror"
)

const (
	BoardSize      = 24
	MaxPlayers     = 2
	StartingPieces = 9

	ColorBlack = "black"
	ColorWhite = "white"
	EmptyCell  = ""

	PhaseWaiting   = "waiting"
	PhasePlacement = "placement"
	PhasePlaying   = "playing"
	PhaseFinished  = "finished"

	StatePending  = "pending"
	StatePlaying  = "playing"
	StateFinished = "finished"
)

// Session is the authoritative in-memory state of one match room.
//
// Phase and State are deliberately parallel: Phase drives the match state
// machine, State mirrors the status stored on the persisted game record.
// Both must be kept in sync on terminal transitions.
type Session struct {
	ID             string            `json:"id"`
	Board          [BoardSize]string `json:"board"`
	CurrentPlayer  string            `json:"currentPlayer"`
	Phase          string            `json:"phase"`
	State          string            `json:"state"`
	Players        []*Player         `json:"players"`
	PiecesToPlace  map[string]int    `json:"piecesToPlace"`
	CapturedPieces map[string]int    `json:"capturedPieces"`
	Winner         string            `json:"winner,omitempty"`
	WinnerScore    int               `json:"winnerScore,omitempty"`
	GameOver       bool              `json:"gameOver,omitempty"`
	IsStarted      bool              `json:"isStarted,omitempty"`
	LastActivity   time.Time         `json:"lastActivity"`

	mu sync.Mutex
}

// NewSession - returns a session in the waiting phase with an empty board
// and the full placement budget for both colors.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:            id,
		CurrentPlayer: ColorBlack,
		Phase:         PhaseWaiting,
		State:         StatePending,
		Players:       []*Player{},
		PiecesToPlace: map[string]int{
			ColorBlack: StartingPieces,
			ColorWhite: StartingPieces,
		},
		CapturedPieces: map[string]int{
			ColorBlack: 0,
			ColorWhite: 0,
		},
		LastActivity: now,
	}
}

// Join - adds the user to the roster or overwrites their existing record in
// place (reconnect). A join for an unknown user on a full roster changes
// nothing and returns ErrRosterFull.
func (that *Session) Join(userID, username, role string, isCreator bool, now time.Time) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if username == "" {
		username = "Player " + role
	}

	record := &Player{
		ID:        userID,
		Username:  username,
		Role:      role,
		IsCreator: isCreator,
	}

	for i, player := range that.Players {
		if player.ID == userID {
			that.Players[i] = record
			that.LastActivity = now
			return nil
		}
	}

	if len(that.Players) >= MaxPlayers {
		return apperror.ErrRosterFull
	}

	that.Players = append(that.Players, record)
	that.LastActivity = now

	return nil
}

// SetReady - flips the readiness flag of the player with the given user id.
func (that *Session) SetReady(userID string, isReady bool, now time.Time) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	player := that.findPlayer(userID)
	if player == nil {
		return apperror.ErrPlayerNotFound
	}

	player.IsReady = isReady
	that.LastActivity = now

	return nil
}

// TryStart - moves the session out of the waiting phase when the start
// condition holds: a full roster, every player ready and a creator present.
// The waiting-phase guard makes the transition fire at most once no matter
// how often the condition is re-evaluated.
func (that *Session) TryStart(now time.Time) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.Phase != PhaseWaiting {
		return false
	}

	if len(that.Players) != MaxPlayers {
		return false
	}

	var creator *Player
	for _, player := range that.Players {
		if !player.IsReady {
			return false
		}
		if player.IsCreator {
			creator = player
		}
	}

	if creator == nil {
		return false
	}

	that.Phase = PhasePlacement
	that.State = StatePlaying
	that.CurrentPlayer = ColorBlack
	that.IsStarted = true
	creator.IsMyTurn = true
	that.LastActivity = now

	return true
}

// ApplyUpdate - merges an authoritative state payload onto the session.
// Fields absent from the payload stay untouched; the roster is never merged
// here. Reports whether the accepted update is terminal.
//
// A finished session rejects every non-terminal update with
// ErrSessionFinished; a terminal re-delivery is re-merged so duplicate
// game-over events stay harmless.
func (that *Session) ApplyUpdate(update *StateUpdate, now time.Time) (finished bool, err error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	shouldFinish := update.IsTerminal()

	if that.Phase == PhaseFinished && !shouldFinish {
		return false, apperror.ErrSessionFinished
	}

	if len(update.Board) == BoardSize {
		copy(that.Board[:], update.Board)
	}
	if update.CurrentPlayer != nil {
		that.CurrentPlayer = *update.CurrentPlayer
	}
	if update.Phase != nil {
		that.Phase = *update.Phase
	}
	if update.State != nil {
		that.State = *update.State
	}
	if update.PiecesToPlace != nil {
		that.PiecesToPlace = copyCounts(update.PiecesToPlace)
	}
	if update.CapturedPieces != nil {
		that.CapturedPieces = copyCounts(update.CapturedPieces)
	}
	if update.Winner != nil {
		that.Winner = *update.Winner
	}
	if update.WinnerScore != nil {
		that.WinnerScore = *update.WinnerScore
	}
	if update.GameOver != nil {
		that.GameOver = *update.GameOver
	}

	if shouldFinish || that.Phase == PhaseFinished {
		that.Phase = PhaseFinished
		that.State = StateFinished
	}

	that.LastActivity = now

	return shouldFinish, nil
}

// Snapshot - returns a deep copy safe to marshal and broadcast while the
// live entity keeps mutating.
func (that *Session) Snapshot() *Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	snapshot := &Session{
		ID:             that.ID,
		Board:          that.Board,
		CurrentPlayer:  that.CurrentPlayer,
		Phase:          that.Phase,
		State:          that.State,
		Players:        copyRoster(that.Players),
		PiecesToPlace:  copyCounts(that.PiecesToPlace),
		CapturedPieces: copyCounts(that.CapturedPieces),
		Winner:         that.Winner,
		WinnerScore:    that.WinnerScore,
		GameOver:       that.GameOver,
		IsStarted:      that.IsStarted,
		LastActivity:   that.LastActivity,
	}

	return snapshot
}

// Roster - returns a copy of the player list in join order.
func (that *Session) Roster() []*Player {
	that.mu.Lock()
	defer that.mu.Unlock()

	return copyRoster(that.Players)
}

func (that *Session) IsFinished() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.Phase == PhaseFinished
}

// IdleSince - reports whether the session saw no accepted mutation after
// the given cutoff.
func (that *Session) IdleSince(cutoff time.Time) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.LastActivity.Before(cutoff)
}

func (that *Session) findPlayer(userID string) *Player {
	for _, player := range that.Players {
		if player.ID == userID {
			return player
		}
	}

	return nil
}

func copyRoster(players []*Player) []*Player {
	roster := make([]*Player, 0, len(players))
	for _, player := range players {
		clone := *player
		roster = append(roster, &clone)
	}

	return roster
}

func copyCounts(counts map[string]int) map[string]int {
	clone := make(map[string]int, len(counts))
	for color, count := range counts {
		clone[color] = count
	}

	return clone
}

package entity

// Player is one seat in a session roster. A player record is created or
// overwritten on every join for its user id and only disappears together
// with the owning session.
type Player struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	IsCreator bool   `json:"isCreator"`
	IsReady   bool   `json:"isReady"`
	IsMyTurn  bool   `json:"isMyTurn,omitempty"`
}

package apperror

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFinished = errors.New("session is already finished")
	ErrRosterFull      = errors.New("session roster is full")
	ErrPlayerNotFound  = errors.New("player is not on the roster")
)

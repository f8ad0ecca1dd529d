package session

import "errors"

var (
	ErrGameOver         = errors.New("game is over")
	ErrOpponentPending  = errors.New("opponent reply pending")
	ErrClockExpired     = errors.New("clock expired")
	ErrNotPlayerTurn    = errors.New("not the player's turn")
	ErrIllegalMove      = errors.New("illegal move")
	ErrIndexOutOfRange  = errors.New("half-move index out of range")
	ErrNothingToRetry   = errors.New("no opponent turn to retry")
	ErrControllerClosed = errors.New("session controller closed")
	ErrTooManySessions  = errors.New("too many active sessions")
)

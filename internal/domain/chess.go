package domain

import "time"

// Side identifies a chess colour.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == White {
		return Black
	}
	return White
}

func (s Side) Valid() bool {
	return s == White || s == Black
}

// Title is the capitalised side name used in user-facing text.
func (s Side) Title() string {
	switch s {
	case White:
		return "White"
	case Black:
		return "Black"
	default:
		return string(s)
	}
}

// FinishedGame is the archived record of a completed session.
type FinishedGame struct {
	ID          int64
	SessionID   string
	PlayerID    string
	Difficulty  Difficulty
	PlayerColor Side
	TimeControl TimeControl
	Result      string
	Reason      string
	Winner      Side
	MovesUCI    []string
	MovesSAN    []string
	PGN         string
	Opening     string
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
}

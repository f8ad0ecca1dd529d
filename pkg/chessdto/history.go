package chessdto

import "time"

type ChessGame struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"sessionId"`
	Difficulty  string    `json:"difficulty"`
	PlayerColor string    `json:"playerColor"`
	TimeControl string    `json:"timeControl"`
	Result      string    `json:"result"`
	Reason      string    `json:"reason"`
	Winner      string    `json:"winner,omitempty"`
	Outcome     string    `json:"outcome"`
	Opening     string    `json:"opening,omitempty"`
	MovesUCI    []string  `json:"movesUci"`
	MovesSAN    []string  `json:"movesSan"`
	PGN         string    `json:"pgn,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
	DurationMS  int64     `json:"durationMs"`
}

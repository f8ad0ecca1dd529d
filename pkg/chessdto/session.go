package chessdto

import "time"

// ClockState is one side's countdown. Display is "mm:ss" or "∞".
type ClockState struct {
	RemainingMS int64  `json:"remainingMs"`
	Bounded     bool   `json:"bounded"`
	Running     bool   `json:"running"`
	Display     string `json:"display"`
}

// MoveEntry is one half-move in the move list.
type MoveEntry struct {
	Index int    `json:"index"`
	Side  string `json:"side"`
	Label string `json:"label"`
	SAN   string `json:"san"`
}

type Outcome struct {
	Result string `json:"result"`
	Kind   string `json:"kind"`
	Winner string `json:"winner,omitempty"`
	Method string `json:"method,omitempty"`
	Text   string `json:"text"`
}

type SessionState struct {
	SessionID   string      `json:"sessionId"`
	Generation  uint64      `json:"generation"`
	Settings    Settings    `json:"settings"`
	FEN         string      `json:"fen"`
	LiveFEN     string      `json:"liveFen"`
	Cursor      int         `json:"cursor"`
	TailIndex   int         `json:"tailIndex"`
	Viewing     bool        `json:"viewingHistory"`
	LastMove    string      `json:"lastMove,omitempty"`
	Moves       []MoveEntry `json:"moves"`
	SideToMove  string      `json:"sideToMove"`
	PlayerTurn  bool        `json:"playerTurn"`
	White       ClockState  `json:"white"`
	Black       ClockState  `json:"black"`
	Thinking    bool        `json:"opponentThinking"`
	CanRetry    bool        `json:"canRetry"`
	LastFailure string      `json:"lastFailure,omitempty"`
	Opening     string      `json:"opening,omitempty"`
	Outcome     *Outcome    `json:"outcome,omitempty"`
	BoardImage  string      `json:"boardImage,omitempty"`
	StartedAt   time.Time   `json:"startedAt"`
	EndedAt     *time.Time  `json:"endedAt,omitempty"`
}

package session

import (
	"time"

	"github.com/park285/cheese-chess-web/internal/domain"
)

type EventKind string

const (
	EventGameStarted      EventKind = "game-started"
	EventMoveApplied      EventKind = "move-applied"
	EventGameTerminal     EventKind = "game-terminal"
	EventClockTick        EventKind = "clock-tick"
	EventOpponentThinking EventKind = "opponent-thinking"
	EventOpponentFailed   EventKind = "opponent-request-failed"
	EventCursorMoved      EventKind = "cursor-moved"
)

// Event is a notification for the presentation layer. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind       EventKind
	SessionID  string
	Generation uint64

	Side  domain.Side
	Label string
	SAN   string
	FEN   string
	Ply   int

	Remaining time.Duration
	Bounded   bool

	Terminal Terminal
	Reason   string
	Cursor   int
}

type TerminalKind string

const (
	TerminalNone      TerminalKind = ""
	TerminalCheckmate TerminalKind = "checkmate"
	TerminalDraw      TerminalKind = "draw"
	TerminalTimeout   TerminalKind = "timeout"
)

// Terminal is set once per game and never cleared.
type Terminal struct {
	Kind   TerminalKind
	Winner domain.Side
	// Loser is set for timeouts; for checkmate it is Winner.Opposite().
	Loser  domain.Side
	Method string
}

func (t Terminal) IsSet() bool { return t.Kind != TerminalNone }

// Result is the PGN result token.
func (t Terminal) Result() string {
	switch {
	case !t.IsSet():
		return "*"
	case t.Kind == TerminalDraw:
		return "1/2-1/2"
	case t.Winner == domain.White:
		return "1-0"
	case t.Winner == domain.Black:
		return "0-1"
	}
	return "*"
}

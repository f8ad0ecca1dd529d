package session

import (
	"time"

	"github.com/park285/cheese-chess-web/internal/clock"
	"github.com/park285/cheese-chess-web/internal/domain"
)

// SideClock is one side's countdown as seen from outside.
type SideClock struct {
	Remaining time.Duration
	Bounded   bool
}

// Snapshot is a detached, read-only view of a Game.
type Snapshot struct {
	SessionID  string
	Generation uint64
	Settings   domain.Settings

	LiveFEN   string
	CursorFEN string
	Cursor    int
	TailIndex int
	// LastMove is the label of the half-move that produced the cursor position.
	LastMove string
	Labels   []string
	SANs     []string
	Moves    []string

	SideToMove  domain.Side
	ActiveSide  domain.Side
	ClockState  clock.State
	White       SideClock
	Black       SideClock
	Pending     bool
	Terminal    Terminal
	Opening     string
	LastFailure string
	StartedAt   time.Time
	EndedAt     time.Time
}

// ViewingHistory reports whether the cursor is behind the live tail.
func (s Snapshot) ViewingHistory() bool { return s.Cursor != s.TailIndex }

// Clock returns side's countdown.
func (s Snapshot) Clock(side domain.Side) SideClock {
	if side == domain.Black {
		return s.Black
	}
	return s.White
}

func (g *Game) Snapshot() Snapshot {
	cursorPos, err := g.ledger.At(g.cursor)
	if err != nil {
		cursorPos = g.current
	}
	lastMove := ""
	if g.cursor > 0 {
		if entries := g.ledger.Entries(); g.cursor <= len(entries) {
			lastMove = entries[g.cursor-1].Label
		}
	}
	return Snapshot{
		SessionID:   g.id,
		Generation:  g.generation,
		Settings:    g.settings,
		LiveFEN:     g.current.FEN(),
		CursorFEN:   cursorPos.FEN(),
		Cursor:      g.cursor,
		TailIndex:   g.ledger.TailIndex(),
		LastMove:    lastMove,
		Labels:      g.ledger.Labels(),
		SANs:        g.ledger.SANs(),
		Moves:       g.current.Moves(),
		SideToMove:  g.current.Turn(),
		ActiveSide:  g.clock.Active(),
		ClockState:  g.clock.State(),
		White:       SideClock{Remaining: g.clock.Remaining(domain.White), Bounded: g.clock.Bounded(domain.White)},
		Black:       SideClock{Remaining: g.clock.Remaining(domain.Black), Bounded: g.clock.Bounded(domain.Black)},
		Pending:     g.pending,
		Terminal:    g.terminal,
		Opening:     g.current.Opening(),
		LastFailure: g.lastFailure,
		StartedAt:   g.startedAt,
		EndedAt:     g.endedAt,
	}
}

// Finished builds the archive record. It is meaningful once Terminal is set.
func (g *Game) Finished(playerID string) domain.FinishedGame {
	end := g.endedAt
	if end.IsZero() {
		end = g.now()
	}
	winner := g.terminal.Winner
	return domain.FinishedGame{
		SessionID:   g.id,
		PlayerID:    playerID,
		Difficulty:  g.settings.Difficulty,
		PlayerColor: g.settings.PlayerColor,
		TimeControl: g.settings.TimeControl,
		Result:      g.terminal.Result(),
		Reason:      string(g.terminal.Kind) + methodSuffix(g.terminal),
		Winner:      winner,
		MovesUCI:    g.current.Moves(),
		MovesSAN:    g.ledger.SANs(),
		Opening:     g.current.Opening(),
		StartedAt:   g.startedAt,
		EndedAt:     end,
		Duration:    end.Sub(g.startedAt),
	}
}

func methodSuffix(t Terminal) string {
	if t.Method == "" || t.Method == string(t.Kind) {
		return ""
	}
	return ":" + t.Method
}

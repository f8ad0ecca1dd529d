package chesspresenter

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/msgcat"
	"github.com/park285/cheese-chess-web/internal/session"
)

const unboundedClock = "∞"

var messages atomic.Pointer[msgcat.Catalog]

// UseCatalog replaces the message catalog used for status and outcome text.
// Until it is called the embedded defaults are used.
func UseCatalog(c *msgcat.Catalog) {
	messages.Store(c)
}

func catalog() *msgcat.Catalog {
	if c := messages.Load(); c != nil {
		return c
	}
	c, err := msgcat.Default()
	if err != nil {
		return nil
	}
	messages.CompareAndSwap(nil, c)
	return c
}

// text renders key, or returns fallback when the catalog cannot.
func text(key string, data map[string]any, fallback string) string {
	out, err := catalog().Render(key, data)
	if err != nil || out == "" {
		return fallback
	}
	return out
}

// FormatClock renders a countdown as mm:ss, or ∞ for an untimed side.
func FormatClock(remaining time.Duration, bounded bool) string {
	if !bounded {
		return text("clock.unbounded", nil, unboundedClock)
	}
	if remaining < 0 {
		remaining = 0
	}
	secs := int64(remaining / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// OutcomeText is the result line shown to the player.
func OutcomeText(t session.Terminal, player domain.Side) string {
	switch t.Kind {
	case session.TerminalCheckmate:
		if t.Winner == player {
			return text("outcome.win", nil, "You win")
		}
		return text("outcome.loss", nil, "You lose")
	case session.TerminalDraw:
		return text("outcome.draw", nil, "Game drawn")
	case session.TerminalTimeout:
		loser := t.Loser.Title()
		return text("outcome.timeout", map[string]any{"Loser": loser}, loser+" ran out of time")
	}
	return ""
}

// StatusLine summarises whose move it is for the board header.
func StatusLine(snap session.Snapshot) string {
	switch {
	case snap.Terminal.IsSet():
		return OutcomeText(snap.Terminal, snap.Settings.PlayerColor)
	case snap.ViewingHistory():
		return text("status.viewing", map[string]any{"Cursor": snap.Cursor, "Tail": snap.TailIndex},
			fmt.Sprintf("Move %d of %d", snap.Cursor, snap.TailIndex))
	case snap.Pending:
		return text("status.thinking", nil, "Opponent thinking")
	case snap.LastFailure != "":
		return text("status.failed", nil, "Opponent failed")
	case snap.SideToMove == snap.Settings.PlayerColor:
		return text("status.your_move", nil, "Your move")
	}
	side := snap.SideToMove.Title()
	return text("status.side_to_move", map[string]any{"Side": side}, side+" to move")
}

func moverAt(index int, first domain.Side) domain.Side {
	if index%2 == 1 {
		return first
	}
	return first.Opposite()
}

package chesspresenter

import (
	"github.com/park285/cheese-chess-web/internal/clock"
	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/session"
	"github.com/park285/cheese-chess-web/pkg/chessdto"
)

// ToDTOState converts a snapshot into the wire state. The board image is
// filled in by the Presenter.
func ToDTOState(s session.Snapshot) *chessdto.SessionState {
	player := s.Settings.PlayerColor
	first := firstMover(s)
	moves := make([]chessdto.MoveEntry, 0, len(s.Labels))
	for i, label := range s.Labels {
		entry := chessdto.MoveEntry{Index: i + 1, Side: string(moverAt(i+1, first)), Label: label}
		if i < len(s.SANs) {
			entry.SAN = s.SANs[i]
		}
		moves = append(moves, entry)
	}

	state := &chessdto.SessionState{
		SessionID:   s.SessionID,
		Generation:  s.Generation,
		Settings:    ToDTOSettings(s.Settings),
		FEN:         s.CursorFEN,
		LiveFEN:     s.LiveFEN,
		Cursor:      s.Cursor,
		TailIndex:   s.TailIndex,
		Viewing:     s.ViewingHistory(),
		LastMove:    s.LastMove,
		Moves:       moves,
		SideToMove:  string(s.SideToMove),
		PlayerTurn:  !s.Terminal.IsSet() && !s.Pending && s.SideToMove == player,
		White:       toDTOClock(s, domain.White),
		Black:       toDTOClock(s, domain.Black),
		Thinking:    s.Pending,
		CanRetry:    !s.Terminal.IsSet() && !s.Pending && s.SideToMove != player,
		LastFailure: s.LastFailure,
		Opening:     s.Opening,
		Outcome:     ToDTOOutcome(s.Terminal, player),
		StartedAt:   s.StartedAt,
	}
	if !s.EndedAt.IsZero() {
		ended := s.EndedAt
		state.EndedAt = &ended
	}
	return state
}

func ToDTOOutcome(t session.Terminal, player domain.Side) *chessdto.Outcome {
	if !t.IsSet() {
		return nil
	}
	return &chessdto.Outcome{
		Result: t.Result(),
		Kind:   string(t.Kind),
		Winner: string(t.Winner),
		Method: t.Method,
		Text:   OutcomeText(t, player),
	}
}

func ToDTOEvent(ev session.Event, player domain.Side) chessdto.Event {
	out := chessdto.Event{
		Kind:       string(ev.Kind),
		SessionID:  ev.SessionID,
		Generation: ev.Generation,
		Side:       string(ev.Side),
		Label:      ev.Label,
		SAN:        ev.SAN,
		FEN:        ev.FEN,
		Ply:        ev.Ply,
		Reason:     ev.Reason,
	}
	switch ev.Kind {
	case session.EventClockTick:
		ms := ev.Remaining.Milliseconds()
		out.RemainingMS = &ms
		out.Display = FormatClock(ev.Remaining, ev.Bounded)
	case session.EventGameTerminal:
		out.Outcome = ToDTOOutcome(ev.Terminal, player)
	case session.EventCursorMoved:
		cursor := ev.Cursor
		out.Cursor = &cursor
	}
	return out
}

func ToDTOSettings(s domain.Settings) chessdto.Settings {
	return chessdto.Settings{
		Difficulty:  string(s.Difficulty),
		PlayerColor: string(s.PlayerColor),
		TimeControl: string(s.TimeControl),
	}
}

func FromDTOPatch(p *chessdto.SettingsPatch) domain.SettingsPatch {
	if p == nil {
		return domain.SettingsPatch{}
	}
	return domain.SettingsPatch{
		Difficulty:  p.Difficulty,
		PlayerColor: p.PlayerColor,
		TimeControl: p.TimeControl,
	}
}

func ToDTOGame(g *domain.FinishedGame) *chessdto.ChessGame {
	if g == nil {
		return nil
	}
	return &chessdto.ChessGame{
		ID:          g.ID,
		SessionID:   g.SessionID,
		Difficulty:  string(g.Difficulty),
		PlayerColor: string(g.PlayerColor),
		TimeControl: string(g.TimeControl),
		Result:      g.Result,
		Reason:      g.Reason,
		Winner:      string(g.Winner),
		Outcome:     playerOutcome(g),
		Opening:     g.Opening,
		MovesUCI:    append([]string(nil), g.MovesUCI...),
		MovesSAN:    append([]string(nil), g.MovesSAN...),
		PGN:         g.PGN,
		StartedAt:   g.StartedAt,
		EndedAt:     g.EndedAt,
		DurationMS:  g.Duration.Milliseconds(),
	}
}

func ToDTOGames(games []*domain.FinishedGame) []*chessdto.ChessGame {
	out := make([]*chessdto.ChessGame, 0, len(games))
	for _, g := range games {
		out = append(out, ToDTOGame(g))
	}
	return out
}

// playerOutcome is "win", "loss" or "draw" from the player's side.
func playerOutcome(g *domain.FinishedGame) string {
	switch {
	case g.Result == "1/2-1/2":
		return "draw"
	case g.Winner == "":
		return ""
	case g.Winner == g.PlayerColor:
		return "win"
	}
	return "loss"
}

func toDTOClock(s session.Snapshot, side domain.Side) chessdto.ClockState {
	c := s.Clock(side)
	return chessdto.ClockState{
		RemainingMS: c.Remaining.Milliseconds(),
		Bounded:     c.Bounded,
		Running:     c.Bounded && s.ClockState == clock.Running && s.ActiveSide == side,
		Display:     FormatClock(c.Remaining, c.Bounded),
	}
}

// firstMover derives who made half-move 1 from the live side to move.
func firstMover(s session.Snapshot) domain.Side {
	if s.TailIndex%2 == 0 {
		return s.SideToMove
	}
	return s.SideToMove.Opposite()
}

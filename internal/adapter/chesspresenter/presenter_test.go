package chesspresenter

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/park285/cheese-chess-web/internal/clock"
	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/render"
	"github.com/park285/cheese-chess-web/internal/session"
)

func TestFormatClock(t *testing.T) {
	cases := []struct {
		d       time.Duration
		bounded bool
		want    string
	}{
		{10 * time.Minute, true, "10:00"},
		{179 * time.Second, true, "02:59"},
		{1500 * time.Millisecond, true, "00:01"},
		{-time.Second, true, "00:00"},
		{0, false, "∞"},
	}
	for _, c := range cases {
		if got := FormatClock(c.d, c.bounded); got != c.want {
			t.Fatalf("FormatClock(%v,%v) = %q, want %q", c.d, c.bounded, got, c.want)
		}
	}
}

func TestOutcomeText(t *testing.T) {
	cases := []struct {
		term   session.Terminal
		player domain.Side
		want   string
	}{
		{session.Terminal{Kind: session.TerminalCheckmate, Winner: domain.White}, domain.White, "You win"},
		{session.Terminal{Kind: session.TerminalCheckmate, Winner: domain.White}, domain.Black, "You lose"},
		{session.Terminal{Kind: session.TerminalDraw, Method: "stalemate"}, domain.White, "Game drawn"},
		{session.Terminal{Kind: session.TerminalTimeout, Loser: domain.Black, Winner: domain.White}, domain.White, "Black ran out of time"},
		{session.Terminal{}, domain.White, ""},
	}
	for _, c := range cases {
		if got := OutcomeText(c.term, c.player); got != c.want {
			t.Fatalf("%+v: got %q want %q", c.term, got, c.want)
		}
	}
}

func sampleSnapshot() session.Snapshot {
	return session.Snapshot{
		SessionID:  "s1",
		Generation: 3,
		Settings:   domain.Settings{Difficulty: domain.DifficultyEasy, PlayerColor: domain.Black, TimeControl: domain.TimeControl3Min},
		LiveFEN:    "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
		CursorFEN:  "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		Cursor:     1,
		TailIndex:  2,
		LastMove:   "e2e4",
		Labels:     []string{"e2e4", "e7e5"},
		SANs:       []string{"e4", "e5"},
		Moves:      []string{"e2e4", "e7e5"},
		SideToMove: domain.White,
		ActiveSide: domain.White,
		ClockState: clock.Running,
		White:      session.SideClock{Remaining: 170 * time.Second, Bounded: true},
		Black:      session.SideClock{Remaining: 175 * time.Second, Bounded: true},
		Opening:    "C20 King's Pawn Game",
		StartedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestToDTOState(t *testing.T) {
	state := ToDTOState(sampleSnapshot())
	if state.FEN != sampleSnapshot().CursorFEN || !state.Viewing || state.Cursor != 1 {
		t.Fatalf("cursor view not carried: %+v", state)
	}
	if len(state.Moves) != 2 || state.Moves[0].Side != "white" || state.Moves[1].Side != "black" || state.Moves[1].SAN != "e5" {
		t.Fatalf("unexpected move list %+v", state.Moves)
	}
	if !state.White.Running || state.Black.Running || state.White.Display != "02:50" {
		t.Fatalf("unexpected clocks %+v %+v", state.White, state.Black)
	}
	if state.PlayerTurn || !state.CanRetry {
		t.Fatalf("black player waiting on white: playerTurn=%v canRetry=%v", state.PlayerTurn, state.CanRetry)
	}
	if state.Outcome != nil || state.EndedAt != nil {
		t.Fatalf("live game has no outcome")
	}
}

func TestToDTOEvent(t *testing.T) {
	ev := ToDTOEvent(session.Event{Kind: session.EventClockTick, Side: domain.White, Remaining: 61 * time.Second, Bounded: true}, domain.White)
	if ev.RemainingMS == nil || *ev.RemainingMS != 61000 || ev.Display != "01:01" {
		t.Fatalf("unexpected tick %+v", ev)
	}
	ev = ToDTOEvent(session.Event{Kind: session.EventGameTerminal, Terminal: session.Terminal{Kind: session.TerminalCheckmate, Winner: domain.Black}}, domain.White)
	if ev.Outcome == nil || ev.Outcome.Result != "0-1" || ev.Outcome.Text != "You lose" {
		t.Fatalf("unexpected terminal %+v", ev.Outcome)
	}
	ev = ToDTOEvent(session.Event{Kind: session.EventCursorMoved, Cursor: 0}, domain.White)
	if ev.Cursor == nil || *ev.Cursor != 0 {
		t.Fatalf("cursor 0 must be present")
	}
}

func TestToDTOGameOutcome(t *testing.T) {
	g := &domain.FinishedGame{PlayerColor: domain.Black, Winner: domain.Black, Result: "0-1", Duration: 2 * time.Second}
	if dto := ToDTOGame(g); dto.Outcome != "win" || dto.DurationMS != 2000 {
		t.Fatalf("unexpected dto %+v", dto)
	}
	g = &domain.FinishedGame{PlayerColor: domain.Black, Result: "1/2-1/2"}
	if dto := ToDTOGame(g); dto.Outcome != "draw" {
		t.Fatalf("expected draw, got %s", dto.Outcome)
	}
}

type fakeRenderer struct {
	fen  string
	opts render.Options
	err  error
}

func (f *fakeRenderer) RenderPNG(ctx context.Context, fen string, opts render.Options) ([]byte, error) {
	f.fen, f.opts = fen, opts
	return []byte("png"), f.err
}

func TestPresenterAttachesBoard(t *testing.T) {
	r := &fakeRenderer{}
	p := NewPresenter(r, nil)
	state := p.State(context.Background(), sampleSnapshot(), true)
	if state.BoardImage != base64.StdEncoding.EncodeToString([]byte("png")) {
		t.Fatalf("board image missing")
	}
	if r.fen != sampleSnapshot().CursorFEN || r.opts.LastMove != "e2e4" || !r.opts.Flip {
		t.Fatalf("renderer got fen=%s opts=%+v", r.fen, r.opts)
	}
	if r.opts.Status != "Move 1 of 2" {
		t.Fatalf("unexpected status %q", r.opts.Status)
	}

	r.err = errors.New("boom")
	if state := p.State(context.Background(), sampleSnapshot(), true); state.BoardImage != "" {
		t.Fatalf("failed render should leave the image empty")
	}
	if _, err := NewPresenter(nil, nil).Board(context.Background(), sampleSnapshot()); err == nil {
		t.Fatalf("expected an error without a renderer")
	}
}

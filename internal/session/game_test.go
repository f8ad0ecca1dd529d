package session

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/park285/cheese-chess-web/internal/clock"
	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/rules"
)

func newTestGame(t testing.TB, color domain.Side, tc domain.TimeControl) *Game {
	t.Helper()
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	g, err := NewGame(rules.NewEngine(nil), "game-1", 7, settingsWith(color, tc), func() time.Time { return fixed })
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	return g
}

func TestStaleReplyIgnored(t *testing.T) {
	g := newTestGame(t, domain.White, domain.TimeControl10Min)
	g.Start()
	if _, _, err := g.SubmitHuman("e2", "e4", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	before := g.Snapshot()
	if step := g.ApplyOpponentReply(6, "e7e5"); len(step.Events) != 0 {
		t.Fatalf("stale reply produced events %+v", step.Events)
	}
	if step := g.FailOpponent(6, errors.New("boom")); len(step.Events) != 0 {
		t.Fatalf("stale failure produced events")
	}
	if !reflect.DeepEqual(before, g.Snapshot()) {
		t.Fatalf("stale reply changed the game")
	}
	if step := g.ApplyOpponentReply(7, "e7e5"); len(step.Events) != 1 || step.Events[0].Kind != EventMoveApplied {
		t.Fatalf("current reply should apply, got %+v", step.Events)
	}
}

func TestReplyAfterTimeoutDropped(t *testing.T) {
	g := newTestGame(t, domain.White, domain.TimeControl("1min"))
	g.Start()
	if _, _, err := g.SubmitHuman("e2", "e4", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	var last Step
	for i := 0; i < 60; i++ {
		last = g.Tick()
	}
	if !last.Finished || g.Terminal().Kind != TerminalTimeout || g.Terminal().Loser != domain.Black {
		t.Fatalf("black should lose on time, got %+v", g.Terminal())
	}
	if step := g.ApplyOpponentReply(7, "e7e5"); len(step.Events) != 0 {
		t.Fatalf("reply after terminal must be dropped")
	}
	if g.Pending() || g.Snapshot().TailIndex != 1 {
		t.Fatalf("pending must clear without applying the reply")
	}
	if step := g.Tick(); len(step.Events) != 0 {
		t.Fatalf("terminal game must not tick")
	}
}

func TestBlackPlayerWaitsForOpponent(t *testing.T) {
	g := newTestGame(t, domain.Black, domain.TimeControl3Min)
	step := g.Start()
	if step.Dispatch == nil || step.Dispatch.FEN != rules.StartFEN || !g.Pending() {
		t.Fatalf("black player: opponent should open, got %+v", step)
	}
	if _, _, err := g.SubmitHuman("e7", "e5", ""); !errors.Is(err, ErrOpponentPending) {
		t.Fatalf("expected ErrOpponentPending, got %v", err)
	}
	g.FailOpponent(7, errors.New("offline"))
	if _, _, err := g.SubmitHuman("e7", "e5", ""); !errors.Is(err, ErrNotPlayerTurn) {
		t.Fatalf("expected ErrNotPlayerTurn, got %v", err)
	}
	if g.Clock().Active() != domain.White || g.Clock().State() != clock.Running {
		t.Fatalf("white clock should run while the opponent is to move")
	}
}

func TestStalemateIsDraw(t *testing.T) {
	g := newTestGame(t, domain.White, domain.TimeControlNoTime)
	g.Start()
	for _, mv := range []string{"e2e3", "a7a5", "d1h5", "a8a6", "h5a5", "h7h5", "h2h4", "a6h6", "a5c7", "f7f6", "c7d7", "e8f7", "d7b7", "d8d3", "b7b8", "d3h7", "b8c8", "f7g6", "c8e6"} {
		if g.Pending() {
			g.ApplyOpponentReply(7, mv)
			continue
		}
		if _, _, err := g.SubmitHuman(mv[:2], mv[2:4], ""); err != nil {
			t.Fatalf("submit %s: %v", mv, err)
		}
	}
	term := g.Terminal()
	if term.Kind != TerminalDraw || term.Method != "stalemate" || term.Result() != "1/2-1/2" {
		t.Fatalf("expected stalemate draw, got %+v", term)
	}
	if g.Pending() {
		t.Fatalf("terminal move must not dispatch")
	}
	fg := g.Finished("p")
	if fg.Reason != "draw:stalemate" || fg.Result != "1/2-1/2" || len(fg.MovesSAN) != 19 {
		t.Fatalf("unexpected finished record %+v", fg)
	}
}

func TestTerminalResultTokens(t *testing.T) {
	cases := map[string]Terminal{
		"*":       {},
		"1-0":     {Kind: TerminalCheckmate, Winner: domain.White},
		"0-1":     {Kind: TerminalTimeout, Winner: domain.Black, Loser: domain.White},
		"1/2-1/2": {Kind: TerminalDraw, Method: "threefold_repetition"},
	}
	for want, term := range cases {
		if got := term.Result(); got != want {
			t.Fatalf("%+v: expected %s, got %s", term, want, got)
		}
	}
}

// TestGameInvariants drives random interleavings of human moves, opponent
// replies, failures, ticks and navigation.
func TestGameInvariants(t *testing.T) {
	engine := rules.NewEngine(nil)
	rapid.Check(t, func(rt *rapid.T) {
		color := rapid.SampledFrom([]domain.Side{domain.White, domain.Black}).Draw(rt, "color")
		tc := rapid.SampledFrom([]domain.TimeControl{"1min", domain.TimeControlNoTime}).Draw(rt, "tc")
		g, err := NewGame(engine, "g", 1, settingsWith(color, tc), nil)
		if err != nil {
			rt.Fatalf("new game: %v", err)
		}
		g.Start()

		applied := 0
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				legal, _ := engine.LegalMoves(g.Current())
				canMove := !g.Pending() && !g.Terminal().IsSet() && g.Current().Turn() == color && len(legal) > 0
				if !canMove {
					before := g.Snapshot()
					if out, _, err := g.SubmitHuman("e2", "e4", ""); err == nil || out.Accepted {
						rt.Fatalf("submission accepted while pending=%v terminal=%v turn=%s",
							before.Pending, before.Terminal.IsSet(), before.SideToMove)
					}
					if !reflect.DeepEqual(before, g.Snapshot()) {
						rt.Fatalf("rejected submission changed the game")
					}
					continue
				}
				mv := rapid.SampledFrom(legal).Draw(rt, "human")
				promo := ""
				if len(mv) == 5 {
					promo = mv[4:]
				}
				out, _, err := g.SubmitHuman(mv[:2], mv[2:4], promo)
				if err != nil || !out.Accepted {
					rt.Fatalf("legal move %s rejected: %v", mv, err)
				}
				applied++
			case 1:
				if !g.Pending() {
					continue
				}
				legal, _ := engine.LegalMoves(g.Current())
				tail := g.Snapshot().TailIndex
				if len(legal) == 0 || rapid.Bool().Draw(rt, "garbage") {
					g.ApplyOpponentReply(1, "zz99")
					if g.Snapshot().TailIndex != tail {
						rt.Fatalf("garbage reply changed the ledger")
					}
					continue
				}
				g.ApplyOpponentReply(1, rapid.SampledFrom(legal).Draw(rt, "reply"))
				applied += g.Snapshot().TailIndex - tail
			case 2:
				g.FailOpponent(1, errors.New("transport"))
			case 3:
				g.Tick()
			case 4:
				tail := g.Snapshot().TailIndex
				g.Navigate(rapid.IntRange(0, tail).Draw(rt, "cursor"))
			case 5:
				_, _ = g.Retry()
			}

			snap := g.Snapshot()
			if snap.TailIndex != applied {
				rt.Fatalf("ledger has %d half-moves, applied %d", snap.TailIndex, applied)
			}
			if len(snap.Labels) != snap.TailIndex {
				rt.Fatalf("labels %d != half-moves %d", len(snap.Labels), snap.TailIndex)
			}
			if tailPos, _ := g.ledger.At(snap.TailIndex); !tailPos.Equal(g.Current()) {
				rt.Fatalf("ledger tail diverged from the live position")
			}
			if snap.Cursor < 0 || snap.Cursor > snap.TailIndex {
				rt.Fatalf("cursor %d outside [0,%d]", snap.Cursor, snap.TailIndex)
			}
			bounded := snap.White.Bounded || snap.Black.Bounded
			if !snap.Terminal.IsSet() && bounded {
				if snap.ClockState != clock.Running || snap.ActiveSide != snap.SideToMove {
					rt.Fatalf("exactly the side to move must be running: state=%v active=%s turn=%s",
						snap.ClockState, snap.ActiveSide, snap.SideToMove)
				}
			}
			if snap.Terminal.IsSet() && snap.ClockState != clock.Stopped {
				rt.Fatalf("terminal game with a running clock")
			}
			if snap.White.Remaining < 0 || snap.Black.Remaining < 0 {
				rt.Fatalf("negative clock")
			}
		}
	})
}

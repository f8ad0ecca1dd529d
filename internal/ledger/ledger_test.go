package ledger

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/park285/cheese-chess-web/internal/rules"
)

func TestLedgerStartsWithInitialPosition(t *testing.T) {
	e := rules.NewEngine(nil)
	l := New(e.Initial())

	if l.Len() != 1 || l.TailIndex() != 0 {
		t.Fatalf("expected one position, got len=%d tail=%d", l.Len(), l.TailIndex())
	}
	pos, err := l.At(0)
	if err != nil || !pos.Equal(e.Initial()) {
		t.Fatalf("At(0) must be the initial position: %v", err)
	}
	if _, ok := l.LastEntry(); ok {
		t.Fatalf("fresh ledger has no half-moves")
	}
	if _, err := l.At(1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := l.At(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange for negative index, got %v", err)
	}
}

func TestLedgerResetDropsHistory(t *testing.T) {
	e := rules.NewEngine(nil)
	l := New(e.Initial())
	res, err := e.Apply(e.Initial(), "e2", "e4", "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	l.Append(res.Position, res.UCI, res.SAN)

	l.Reset(e.Initial())
	if l.Len() != 1 || len(l.Labels()) != 0 {
		t.Fatalf("reset must leave only the initial position, len=%d", l.Len())
	}
}

func TestLedgerCopiesAreDetached(t *testing.T) {
	e := rules.NewEngine(nil)
	l := New(e.Initial())
	res, _ := e.Apply(e.Initial(), "d2", "d4", "")
	l.Append(res.Position, res.UCI, res.SAN)

	labels := l.Labels()
	labels[0] = "tampered"
	entries := l.Entries()
	entries[0].Label = "tampered"

	if got := l.Labels()[0]; got != "d2d4" {
		t.Fatalf("ledger label mutated through copy: %q", got)
	}
	if got := l.SANs()[0]; got != "d4" {
		t.Fatalf("unexpected SAN %q", got)
	}
}

func TestLedgerRandomGames(t *testing.T) {
	e := rules.NewEngine(nil)

	rapid.Check(t, func(rt *rapid.T) {
		l := New(e.Initial())
		live := e.Initial()
		history := []rules.Position{live}

		plies := rapid.IntRange(0, 24).Draw(rt, "plies")
		for i := 0; i < plies; i++ {
			legal, err := e.LegalMoves(live)
			if err != nil {
				rt.Fatalf("legal moves: %v", err)
			}
			if len(legal) == 0 {
				break
			}
			mv := rapid.SampledFrom(legal).Draw(rt, "move")
			res, err := e.ApplyNotation(live, mv)
			if err != nil {
				rt.Fatalf("apply %s: %v", mv, err)
			}
			l.Append(res.Position, res.UCI, res.SAN)
			live = res.Position
			history = append(history, live)
			if res.Terminal() {
				break
			}
		}

		if l.Len()-1 != len(history)-1 {
			rt.Fatalf("ledger has %d half-moves, applied %d", l.Len()-1, len(history)-1)
		}
		if len(l.Labels()) != l.Len()-1 {
			rt.Fatalf("labels %d != len-1 %d", len(l.Labels()), l.Len()-1)
		}
		if !l.Tail().Equal(live) {
			rt.Fatalf("tail differs from live position")
		}
		for i, want := range history {
			got, err := l.At(i)
			if err != nil {
				rt.Fatalf("At(%d): %v", i, err)
			}
			if !got.Equal(want) {
				rt.Fatalf("At(%d) = %s, want %s", i, got.FEN(), want.FEN())
			}
			if got.Ply() != i {
				rt.Fatalf("At(%d) has ply %d", i, got.Ply())
			}
		}
	})
}

package opponent

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/opponent/uci"
)

type fakeSearcher struct {
	gotOpt uci.Options
	gotReq uci.SearchRequest
	res    uci.SearchResult
	err    error
}

func (f *fakeSearcher) Search(ctx context.Context, opt uci.Options, req uci.SearchRequest) (uci.SearchResult, error) {
	f.gotOpt = opt
	f.gotReq = req
	return f.res, f.err
}

func TestLocalClientUsesPresetAndMoves(t *testing.T) {
	fs := &fakeSearcher{res: uci.SearchResult{BestMove: "e7e5"}}
	c, err := NewLocalClient(fs)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	move, err := c.RequestMove(context.Background(), Request{
		FEN:        afterE4,
		Difficulty: domain.DifficultyHard,
		Moves:      []string{"e2e4"},
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if move != "e7e5" {
		t.Fatalf("expected bestmove, got %q", move)
	}
	hard := PresetFor(domain.DifficultyHard)
	if fs.gotOpt != hard.Options || fs.gotReq.Limits != hard.Limits {
		t.Fatalf("hard preset not applied: %+v %+v", fs.gotOpt, fs.gotReq.Limits)
	}
	if len(fs.gotReq.Moves) != 1 || fs.gotReq.Moves[0] != "e2e4" {
		t.Fatalf("moves not forwarded: %v", fs.gotReq.Moves)
	}
}

func TestLocalClientPicksAmongCandidates(t *testing.T) {
	fs := &fakeSearcher{res: uci.SearchResult{
		BestMove: "e7e5",
		Candidates: []uci.Candidate{
			{Move: "e7e5"}, {Move: "c7c5"}, {Move: "e7e6"}, {Move: "d7d5"},
		},
	}}
	c, err := NewLocalClient(fs, WithRand(rand.New(rand.NewSource(7))))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	allowed := map[string]bool{"e7e5": true, "c7c5": true, "e7e6": true, "d7d5": true}
	for i := 0; i < 20; i++ {
		move, err := c.RequestMove(context.Background(), Request{FEN: afterE4, Difficulty: domain.DifficultyEasy})
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if !allowed[move] {
			t.Fatalf("unexpected move %q", move)
		}
	}
}

func TestLocalClientErrorMapping(t *testing.T) {
	fs := &fakeSearcher{err: uci.ErrNoBestMove}
	c, _ := NewLocalClient(fs)
	if _, err := c.RequestMove(context.Background(), Request{FEN: afterE4}); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}

	fs.err = context.Canceled
	if _, err := c.RequestMove(context.Background(), Request{FEN: afterE4}); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	fs.err = nil
	fs.res = uci.SearchResult{}
	if _, err := c.RequestMove(context.Background(), Request{FEN: afterE4}); !errors.Is(err, ErrEmptyMove) {
		t.Fatalf("expected ErrEmptyMove, got %v", err)
	}
}

func TestNewLocalClientRejectsBadPreset(t *testing.T) {
	if _, err := NewLocalClient(nil); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("nil searcher must fail, got %v", err)
	}
	bad := Preset{Name: "broken", Options: uci.Options{HashMB: 16}, PrimaryChoices: 1, CandidateWeights: []float64{1}}
	if _, err := NewLocalClient(&fakeSearcher{}, WithPreset(domain.DifficultyEasy, bad)); err == nil {
		t.Fatalf("preset without limits must fail")
	}
}

func TestDefaultPresetsValid(t *testing.T) {
	for d, p := range defaultPresets {
		if err := ValidatePreset(p); err != nil {
			t.Fatalf("%s: %v", d, err)
		}
	}
	if PresetFor("unknown").Name != "medium" {
		t.Fatalf("unknown difficulty must fall back to medium")
	}
}

func TestSelectCandidateStaysInPrimaryWindow(t *testing.T) {
	p := Preset{
		Name:             "t",
		Options:          uci.Options{HashMB: 16},
		Limits:           uci.Limits{Depth: 1},
		PrimaryChoices:   2,
		CandidateWeights: []float64{1, 1},
	}
	cands := []uci.Candidate{{Move: "a"}, {Move: "b"}, {Move: "c"}}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		got, err := selectCandidate(p, cands, r)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if got.Move == "c" {
			t.Fatalf("picked outside primary window")
		}
	}
	if _, err := selectCandidate(p, nil, r); err == nil {
		t.Fatalf("expected error for empty candidates")
	}
}

func TestBookHelpers(t *testing.T) {
	b, err := LoadBook("  ")
	if err != nil || b != nil {
		t.Fatalf("empty path must give nil book, got %v %v", b, err)
	}
	moves, err := b.Moves(afterE4)
	if err != nil || moves != nil {
		t.Fatalf("nil book must have no moves")
	}
	if _, found, _ := b.Pick(afterE4, rand.New(rand.NewSource(1))); found {
		t.Fatalf("nil book must not find moves")
	}
	if _, err := LoadBook("/nonexistent/book.bin"); err == nil {
		t.Fatalf("expected error for missing book")
	}

	r := rand.New(rand.NewSource(3))
	only := []BookMove{{Move: "e7e5", Weight: 0}, {Move: "c7c5", Weight: 10}}
	for i := 0; i < 20; i++ {
		if got := pickWeighted(only, r); got != "c7c5" {
			t.Fatalf("zero weight entry must never be picked, got %q", got)
		}
	}
}

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/opponent"
	"github.com/park285/cheese-chess-web/internal/rules"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type staticSettings struct {
	settings domain.Settings
	err      error
}

func (s staticSettings) Get(ctx context.Context, playerID string) (domain.Settings, error) {
	return s.settings, s.err
}

func newTestRegistry(t *testing.T, clk *fakeClock, src SettingsSource, max int) *Registry {
	t.Helper()
	engine := rules.NewEngine(nil)
	idle := opponent.ClientFunc(func(ctx context.Context, req opponent.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	tickers := &manualTickers{}
	reg, err := NewRegistry(RegistryConfig{
		Factory: func(playerID string, settings domain.Settings) (*Controller, error) {
			return NewController(Config{
				PlayerID:  playerID,
				Rules:     engine,
				Opponent:  idle,
				NewTicker: tickers.factory,
				Now:       clk.Now,
			}, settings)
		},
		Settings: src,
		TTL:      time.Hour,
		Max:      max,
		Now:      clk.Now,
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestRegistryReusesControllerPerPlayer(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	stored := settingsWith(domain.White, domain.TimeControl3Min)
	stored.Difficulty = domain.DifficultyHard
	reg := newTestRegistry(t, clk, staticSettings{settings: stored}, 10)

	a, err := reg.GetOrCreate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	again, err := reg.GetOrCreate(context.Background(), "alice")
	if err != nil || again != a {
		t.Fatalf("expected the same controller, got %v %v", again, err)
	}
	snap, err := a.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Settings != stored {
		t.Fatalf("first game should use stored settings, got %+v", snap.Settings)
	}
	if _, ok := reg.Get("bob"); ok {
		t.Fatalf("bob has no session yet")
	}
}

func TestRegistryFallsBackToDefaults(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	reg := newTestRegistry(t, clk, staticSettings{err: errors.New("redis down")}, 10)
	c, err := reg.GetOrCreate(context.Background(), "carol")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, _ := c.Snapshot(context.Background())
	if snap.Settings != domain.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", snap.Settings)
	}
}

func TestRegistryCapAndEviction(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg := newTestRegistry(t, clk, nil, 2)

	first, _ := reg.GetOrCreate(context.Background(), "p1")
	if _, err := reg.GetOrCreate(context.Background(), "p2"); err != nil {
		t.Fatalf("p2: %v", err)
	}
	if _, err := reg.GetOrCreate(context.Background(), "p3"); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("expected ErrTooManySessions, got %v", err)
	}

	clk.Advance(30 * time.Minute)
	if _, err := reg.GetOrCreate(context.Background(), "p2"); err != nil {
		t.Fatalf("touch p2: %v", err)
	}
	p2, _ := reg.Get("p2")
	if _, err := p2.Snapshot(context.Background()); err != nil {
		t.Fatalf("p2 snapshot: %v", err)
	}

	clk.Advance(45 * time.Minute)
	if n := reg.Sweep(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if _, ok := reg.Get("p1"); ok {
		t.Fatalf("p1 should be evicted")
	}
	if _, err := first.Snapshot(context.Background()); !errors.Is(err, ErrControllerClosed) {
		t.Fatalf("evicted controller should be closed, got %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one live session, got %d", reg.Len())
	}
}

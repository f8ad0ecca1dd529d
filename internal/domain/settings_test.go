package domain

import (
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.Difficulty != DifficultyMedium || s.PlayerColor != White || s.TimeControl != TimeControl10Min {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestSettingsApplyPatch(t *testing.T) {
	base := DefaultSettings()

	got, err := base.Apply(SettingsPatch{Difficulty: strPtr("HARD"), PlayerColor: strPtr("b")})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Difficulty != DifficultyHard || got.PlayerColor != Black || got.TimeControl != TimeControl10Min {
		t.Fatalf("unexpected merge %+v", got)
	}

	if _, err := base.Apply(SettingsPatch{Difficulty: strPtr("grandmaster")}); !errors.Is(err, ErrInvalidDifficulty) {
		t.Fatalf("expected ErrInvalidDifficulty, got %v", err)
	}
	if _, err := base.Apply(SettingsPatch{PlayerColor: strPtr("red")}); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
	if _, err := base.Apply(SettingsPatch{TimeControl: strPtr("0min")}); !errors.Is(err, ErrInvalidTimeControl) {
		t.Fatalf("expected ErrInvalidTimeControl, got %v", err)
	}
}

func TestTimeControlBudget(t *testing.T) {
	cases := map[TimeControl]struct {
		budget  time.Duration
		bounded bool
	}{
		"3min":    {3 * time.Minute, true},
		"10min":   {10 * time.Minute, true},
		"1min":    {time.Minute, true},
		"no-time": {0, false},
	}
	for tc, want := range cases {
		budget, bounded, err := tc.Budget()
		if err != nil {
			t.Fatalf("%s: %v", tc, err)
		}
		if budget != want.budget || bounded != want.bounded {
			t.Fatalf("%s: got %v/%v", tc, budget, bounded)
		}
	}
	if _, _, err := TimeControl("999min").Budget(); err == nil {
		t.Fatalf("expected overly long control to be rejected")
	}
}

func TestSideHelpers(t *testing.T) {
	if White.Opposite() != Black || Black.Opposite() != White {
		t.Fatalf("Opposite is broken")
	}
	if Side("purple").Valid() {
		t.Fatalf("unknown side must not be valid")
	}
	if White.Title() != "White" {
		t.Fatalf("unexpected title %q", White.Title())
	}
}

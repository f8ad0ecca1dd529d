package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TimeControl names a per-side budget, e.g. "3min", "10min" or "no-time".
type TimeControl string

const (
	TimeControl3Min   TimeControl = "3min"
	TimeControl10Min  TimeControl = "10min"
	TimeControlNoTime TimeControl = "no-time"

	maxTimeControlMinutes = 180
)

var (
	ErrInvalidDifficulty  = errors.New("invalid difficulty")
	ErrInvalidColor       = errors.New("invalid player color")
	ErrInvalidTimeControl = errors.New("invalid time control")
)

// Settings is the configuration read once at new-game time.
type Settings struct {
	Difficulty  Difficulty  `json:"difficulty" yaml:"difficulty"`
	PlayerColor Side        `json:"playerColor" yaml:"player_color"`
	TimeControl TimeControl `json:"timeControl" yaml:"time_control"`
}

// DefaultSettings mirrors the defaults a fresh browser starts with.
func DefaultSettings() Settings {
	return Settings{
		Difficulty:  DifficultyMedium,
		PlayerColor: White,
		TimeControl: TimeControl10Min,
	}
}

// SettingsPatch carries a partial settings update; nil fields are left alone.
type SettingsPatch struct {
	Difficulty  *string `json:"difficulty,omitempty"`
	PlayerColor *string `json:"playerColor,omitempty"`
	TimeControl *string `json:"timeControl,omitempty"`
}

func (s Settings) Validate() error {
	if _, err := ParseDifficulty(string(s.Difficulty)); err != nil {
		return err
	}
	if _, err := ParseSide(string(s.PlayerColor)); err != nil {
		return err
	}
	if _, _, err := s.TimeControl.Budget(); err != nil {
		return err
	}
	return nil
}

// Apply merges the patch into s, validating every provided field.
func (s Settings) Apply(p SettingsPatch) (Settings, error) {
	out := s
	if p.Difficulty != nil {
		d, err := ParseDifficulty(*p.Difficulty)
		if err != nil {
			return s, err
		}
		out.Difficulty = d
	}
	if p.PlayerColor != nil {
		c, err := ParseSide(*p.PlayerColor)
		if err != nil {
			return s, err
		}
		out.PlayerColor = c
	}
	if p.TimeControl != nil {
		tc := TimeControl(strings.ToLower(strings.TrimSpace(*p.TimeControl)))
		if _, _, err := tc.Budget(); err != nil {
			return s, err
		}
		out.TimeControl = tc
	}
	return out, nil
}

func ParseDifficulty(raw string) (Difficulty, error) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(raw))) {
	case DifficultyEasy:
		return DifficultyEasy, nil
	case DifficultyMedium:
		return DifficultyMedium, nil
	case DifficultyHard:
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, raw)
}

func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidColor, raw)
}

// Budget returns the per-side time allowance. bounded is false for "no-time".
func (tc TimeControl) Budget() (budget time.Duration, bounded bool, err error) {
	raw := strings.ToLower(strings.TrimSpace(string(tc)))
	switch TimeControl(raw) {
	case TimeControlNoTime, "none", "unlimited":
		return 0, false, nil
	case TimeControl3Min:
		return 3 * time.Minute, true, nil
	case TimeControl10Min:
		return 10 * time.Minute, true, nil
	}
	if n, ok := strings.CutSuffix(raw, "min"); ok {
		minutes, convErr := strconv.Atoi(n)
		if convErr == nil && minutes > 0 && minutes <= maxTimeControlMinutes {
			return time.Duration(minutes) * time.Minute, true, nil
		}
	}
	return 0, false, fmt.Errorf("%w: %q", ErrInvalidTimeControl, string(tc))
}

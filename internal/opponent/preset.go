package opponent

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/opponent/uci"
)

// Preset tunes the local engine for one difficulty.
type Preset struct {
	Name    string
	Options uci.Options
	Limits  uci.Limits
	// PrimaryChoices is how many of the engine's top lines are eligible.
	PrimaryChoices   int
	CandidateWeights []float64
	// UseBook consults the polyglot book before searching.
	UseBook bool
}

var defaultPresets = map[domain.Difficulty]Preset{
	domain.DifficultyEasy: {
		Name:             "easy",
		Options:          uci.Options{Threads: 1, HashMB: 16, SkillLevel: 1, Elo: 1350, MultiPV: 4},
		Limits:           uci.Limits{Depth: 4, MoveTimeMillis: 80},
		PrimaryChoices:   4,
		CandidateWeights: []float64{0.4, 0.3, 0.2, 0.1},
	},
	domain.DifficultyMedium: {
		Name:             "medium",
		Options:          uci.Options{Threads: 1, HashMB: 32, SkillLevel: 8, MultiPV: 3},
		Limits:           uci.Limits{Depth: 10, MoveTimeMillis: 250},
		PrimaryChoices:   3,
		CandidateWeights: []float64{0.7, 0.2, 0.1},
		UseBook:          true,
	},
	domain.DifficultyHard: {
		Name:             "hard",
		Options:          uci.Options{Threads: 2, HashMB: 64, SkillLevel: 20, MultiPV: 1},
		Limits:           uci.Limits{Depth: 18, MoveTimeMillis: 800},
		PrimaryChoices:   1,
		CandidateWeights: []float64{1},
		UseBook:          true,
	},
}

// PresetFor returns the preset for d, falling back to medium.
func PresetFor(d domain.Difficulty) Preset {
	if p, ok := defaultPresets[d]; ok {
		return p
	}
	return defaultPresets[domain.DifficultyMedium]
}

func ValidatePreset(p Preset) error {
	if err := p.Options.Validate(); err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	if p.Limits.Depth <= 0 && p.Limits.MoveTimeMillis <= 0 && p.Limits.Nodes <= 0 {
		return fmt.Errorf("preset %s does not define search limits", p.Name)
	}
	if p.PrimaryChoices <= 0 {
		return fmt.Errorf("preset %s primary choices must be > 0", p.Name)
	}
	if len(p.CandidateWeights) < p.PrimaryChoices {
		return fmt.Errorf("preset %s needs %d candidate weights, has %d", p.Name, p.PrimaryChoices, len(p.CandidateWeights))
	}
	return nil
}

// selectCandidate draws one of the top PrimaryChoices lines by weight.
func selectCandidate(p Preset, candidates []uci.Candidate, r *rand.Rand) (uci.Candidate, error) {
	if len(candidates) == 0 {
		return uci.Candidate{}, errors.New("no candidates to choose from")
	}
	if err := ValidatePreset(p); err != nil {
		return uci.Candidate{}, err
	}

	limit := p.PrimaryChoices
	if limit > len(candidates) {
		limit = len(candidates)
	}

	total := 0.0
	for i := 0; i < limit; i++ {
		total += p.CandidateWeights[i]
	}
	if total <= 0 {
		return uci.Candidate{}, errors.New("candidate weights sum to zero")
	}

	threshold := r.Float64() * total
	for i := 0; i < limit; i++ {
		threshold -= p.CandidateWeights[i]
		if threshold <= 0 {
			return candidates[i], nil
		}
	}
	return candidates[limit-1], nil
}

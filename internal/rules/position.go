package rules

import (
	"strings"

	"github.com/park285/cheese-chess-web/internal/domain"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is an immutable board snapshot. It remembers the move list that
// produced it so repetition draws survive a round trip through the ledger.
type Position struct {
	startFEN string
	moves    []string
	fen      string
	turn     domain.Side
	opening  string
}

// FEN returns the canonical serialisation.
func (p Position) FEN() string { return p.fen }

func (p Position) String() string { return p.fen }

// Turn reports the side to move.
func (p Position) Turn() domain.Side { return p.turn }

// Ply is the number of half-moves played since the start position.
func (p Position) Ply() int { return len(p.moves) }

// Moves returns a copy of the UCI moves leading to this position.
func (p Position) Moves() []string {
	return append([]string(nil), p.moves...)
}

func (p Position) StartFEN() string { return p.startFEN }

// Opening is the ECO label of the line leading here, if any.
func (p Position) Opening() string { return p.opening }

func (p Position) IsZero() bool { return p.fen == "" }

// Equal compares board state and history.
func (p Position) Equal(o Position) bool {
	if p.fen != o.fen || p.startFEN != o.startFEN || len(p.moves) != len(o.moves) {
		return false
	}
	for i := range p.moves {
		if p.moves[i] != o.moves[i] {
			return false
		}
	}
	return true
}

func (p Position) withMove(uci, fen string, turn domain.Side, opening string) Position {
	moves := make([]string, len(p.moves), len(p.moves)+1)
	copy(moves, p.moves)
	moves = append(moves, uci)
	if opening == "" {
		opening = p.opening
	}
	return Position{
		startFEN: p.startFEN,
		moves:    moves,
		fen:      fen,
		turn:     turn,
		opening:  opening,
	}
}

func isStartFEN(fen string) bool {
	trimmed := strings.TrimSpace(fen)
	return trimmed == "" || trimmed == "startpos" || trimmed == StartFEN
}

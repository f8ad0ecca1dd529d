package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-chess-web/internal/domain"
)

const (
	pgnEvent       = "Casual game vs engine"
	pgnSite        = "cheese-chess-web"
	pgnPlayerName  = "Player"
	pgnEngineLabel = "Engine"
)

// BuildPGN renders a finished game as PGN text from its SAN list.
func BuildPGN(g *domain.FinishedGame) string {
	if g == nil {
		return ""
	}
	result := g.Result
	if result == "" {
		result = "*"
	}
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}

	white, black := pgnPlayerName, engineName(g.Difficulty)
	if g.PlayerColor == domain.Black {
		white, black = black, white
	}

	var b strings.Builder
	writeTag(&b, "Event", pgnEvent)
	writeTag(&b, "Site", pgnSite)
	writeTag(&b, "Date", fmt.Sprintf("%04d.%02d.%02d", date.Year(), int(date.Month()), date.Day()))
	writeTag(&b, "White", white)
	writeTag(&b, "Black", black)
	writeTag(&b, "Result", result)
	if tc := timeControlTag(g.TimeControl); tc != "" {
		writeTag(&b, "TimeControl", tc)
	}
	if g.Reason != "" {
		writeTag(&b, "Termination", strings.ToLower(g.Reason))
	}
	if g.Opening != "" {
		writeTag(&b, "Opening", g.Opening)
	}
	b.WriteString("\n")

	for i := 0; i < len(g.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s ", i/2+1, strings.TrimSpace(g.MovesSAN[i]))
		if i+1 < len(g.MovesSAN) {
			b.WriteString(strings.TrimSpace(g.MovesSAN[i+1]))
			b.WriteString(" ")
		}
	}
	b.WriteString(result)
	return b.String()
}

func writeTag(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "[%s \"%s\"]\n", name, sanitizePGN(value))
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

func engineName(d domain.Difficulty) string {
	if d == "" {
		return pgnEngineLabel
	}
	return fmt.Sprintf("%s (%s)", pgnEngineLabel, d)
}

// timeControlTag uses the PGN seconds form, "-" for untimed games.
func timeControlTag(tc domain.TimeControl) string {
	if tc == "" {
		return ""
	}
	budget, bounded, err := tc.Budget()
	if err != nil {
		return ""
	}
	if !bounded {
		return "-"
	}
	return fmt.Sprintf("%d", int(budget/time.Second))
}

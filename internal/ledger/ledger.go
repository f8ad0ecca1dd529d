package ledger

import (
	"errors"
	"fmt"

	"github.com/park285/cheese-chess-web/internal/rules"
)

var ErrIndexOutOfRange = errors.New("ledger index out of range")

// Entry is one half-move: the resulting position and its display label.
type Entry struct {
	Position rules.Position
	Label    string
	SAN      string
}

// Ledger is an append-only record of positions. Index 0 is the initial
// position; index k is the position after half-move k.
type Ledger struct {
	initial rules.Position
	entries []Entry
}

func New(initial rules.Position) *Ledger {
	return &Ledger{initial: initial}
}

// Reset drops every half-move and installs a new initial position.
func (l *Ledger) Reset(initial rules.Position) {
	l.initial = initial
	l.entries = nil
}

// Append records a half-move and returns the new tail index.
func (l *Ledger) Append(pos rules.Position, label, san string) int {
	l.entries = append(l.entries, Entry{Position: pos, Label: label, SAN: san})
	return len(l.entries)
}

// At returns the position at index i.
func (l *Ledger) At(i int) (rules.Position, error) {
	if i < 0 || i > len(l.entries) {
		return rules.Position{}, fmt.Errorf("%w: %d not in [0,%d]", ErrIndexOutOfRange, i, len(l.entries))
	}
	if i == 0 {
		return l.initial, nil
	}
	return l.entries[i-1].Position, nil
}

// Len counts positions, including the initial one.
func (l *Ledger) Len() int { return len(l.entries) + 1 }

// TailIndex is Len()-1.
func (l *Ledger) TailIndex() int { return len(l.entries) }

func (l *Ledger) Tail() rules.Position {
	if len(l.entries) == 0 {
		return l.initial
	}
	return l.entries[len(l.entries)-1].Position
}

// Labels returns one label per half-move.
func (l *Ledger) Labels() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Label
	}
	return out
}

func (l *Ledger) SANs() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.SAN
	}
	return out
}

// Entries returns a copy of the half-move records.
func (l *Ledger) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// LastEntry returns the most recent half-move, if any.
func (l *Ledger) LastEntry() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

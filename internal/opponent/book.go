package opponent

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// BookMove is a polyglot entry that is legal in the queried position.
type BookMove struct {
	Move   string
	Weight uint16
}

// Book wraps a polyglot opening book.
type Book struct {
	book *nchess.PolyglotBook
}

// LoadBook opens a polyglot .bin file. An empty path yields a nil Book,
// which answers every lookup with no move.
func LoadBook(path string) (*Book, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open polyglot book %q: %w", path, err)
	}
	defer file.Close()

	book, err := nchess.LoadFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("load polyglot book %q: %w", path, err)
	}
	return &Book{book: book}, nil
}

// Moves lists the book moves for fen that survive a legality check.
func (b *Book) Moves(fen string) ([]BookMove, error) {
	if b == nil || b.book == nil {
		return nil, nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("book position: %w", err)
	}

	hashStr, err := nchess.NewZobristHasher().HashPosition(fen)
	if err != nil {
		return nil, fmt.Errorf("compute polyglot hash: %w", err)
	}
	entries := b.book.FindMoves(nchess.ZobristHashToUint64(hashStr))

	legal := make(map[string]struct{})
	for _, mv := range nchess.NewGame(opt).ValidMoves() {
		legal[mv.String()] = struct{}{}
	}

	out := make([]BookMove, 0, len(entries))
	for _, entry := range entries {
		decoded := nchess.DecodeMove(entry.Move).ToMove()
		move := decoded.String()
		if _, ok := legal[move]; !ok {
			continue
		}
		out = append(out, BookMove{Move: move, Weight: entry.Weight})
	}
	return out, nil
}

// Pick draws one legal book move for fen weighted by entry weight.
func (b *Book) Pick(fen string, r *rand.Rand) (string, bool, error) {
	moves, err := b.Moves(fen)
	if err != nil || len(moves) == 0 {
		return "", false, err
	}
	return pickWeighted(moves, r), true, nil
}

func pickWeighted(moves []BookMove, r *rand.Rand) string {
	total := 0
	for _, m := range moves {
		total += int(m.Weight)
	}
	if total == 0 {
		return moves[0].Move
	}
	threshold := r.Intn(total)
	for _, m := range moves {
		threshold -= int(m.Weight)
		if threshold < 0 {
			return m.Move
		}
	}
	return moves[len(moves)-1].Move
}

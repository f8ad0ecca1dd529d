package opponent

import (
	"context"
	"errors"

	"github.com/park285/cheese-chess-web/internal/domain"
)

var (
	ErrTransport         = errors.New("opponent transport failure")
	ErrBadStatus         = errors.New("opponent returned non-2xx status")
	ErrEmptyMove         = errors.New("opponent returned no move")
	ErrMalformedResponse = errors.New("opponent returned malformed response")
	ErrEngineUnavailable = errors.New("opponent engine unavailable")
)

// Request is what the opponent sees: the live position and the difficulty.
type Request struct {
	FEN        string
	Difficulty domain.Difficulty
	// StartFEN and Moves let engine backends send "position ... moves ...".
	StartFEN string
	Moves    []string
}

// Client produces one reply move, in UCI or SAN, for the position in req.
// Implementations must honour ctx cancellation.
type Client interface {
	RequestMove(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) RequestMove(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

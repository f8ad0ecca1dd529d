package opponent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/opponent/uci"
)

// Searcher runs one engine search. *uci.Pool satisfies it.
type Searcher interface {
	Search(ctx context.Context, opt uci.Options, req uci.SearchRequest) (uci.SearchResult, error)
}

// LocalClient answers from a polyglot book when it can and otherwise asks a
// local UCI engine, picking among its top lines by the difficulty preset.
type LocalClient struct {
	engine Searcher
	book   *Book
	logger *zap.Logger

	presets map[domain.Difficulty]Preset

	rngMu sync.Mutex
	rng   *rand.Rand
}

type LocalOption func(*LocalClient)

func WithBook(b *Book) LocalOption {
	return func(c *LocalClient) { c.book = b }
}

func WithPreset(d domain.Difficulty, p Preset) LocalOption {
	return func(c *LocalClient) { c.presets[d] = p }
}

func WithRand(r *rand.Rand) LocalOption {
	return func(c *LocalClient) {
		if r != nil {
			c.rng = r
		}
	}
}

func WithLocalLogger(l *zap.Logger) LocalOption {
	return func(c *LocalClient) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewLocalClient(engine Searcher, opts ...LocalOption) (*LocalClient, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: nil searcher", ErrEngineUnavailable)
	}
	c := &LocalClient{
		engine:  engine,
		logger:  zap.NewNop(),
		presets: make(map[domain.Difficulty]Preset, len(defaultPresets)),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for d, p := range defaultPresets {
		c.presets[d] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	for d, p := range c.presets {
		if err := ValidatePreset(p); err != nil {
			return nil, fmt.Errorf("difficulty %s: %w", d, err)
		}
	}
	return c, nil
}

// RequestMove implements Client.
func (c *LocalClient) RequestMove(ctx context.Context, req Request) (string, error) {
	preset, ok := c.presets[req.Difficulty]
	if !ok {
		preset = PresetFor(req.Difficulty)
	}

	if preset.UseBook && c.book != nil {
		move, found, err := c.bookMove(req.FEN)
		if err != nil {
			c.logger.Warn("opponent_book_lookup_failed", zap.String("fen", req.FEN), zap.Error(err))
		} else if found {
			c.logger.Debug("opponent_book_move", zap.String("move", move), zap.String("difficulty", string(req.Difficulty)))
			return move, nil
		}
	}

	res, err := c.engine.Search(ctx, preset.Options, uci.SearchRequest{
		StartFEN: req.StartFEN,
		Moves:    req.Moves,
		Limits:   preset.Limits,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if res.BestMove == "" {
		return "", ErrEmptyMove
	}
	if len(res.Candidates) == 0 || preset.PrimaryChoices <= 1 {
		return res.BestMove, nil
	}

	c.rngMu.Lock()
	choice, err := selectCandidate(preset, res.Candidates, c.rng)
	c.rngMu.Unlock()
	if err != nil {
		c.logger.Warn("opponent_candidate_select_failed", zap.Error(err))
		return res.BestMove, nil
	}
	return choice.Move, nil
}

func (c *LocalClient) bookMove(fen string) (string, bool, error) {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.book.Pick(fen, c.rng)
}

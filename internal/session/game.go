package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-chess-web/internal/clock"
	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/ledger"
	"github.com/park285/cheese-chess-web/internal/opponent"
	"github.com/park285/cheese-chess-web/internal/rules"
)

// MoveOutcome is the answer to a human move submission.
type MoveOutcome struct {
	Accepted bool
	Terminal Terminal
	// Dispatched is set when the move handed the turn to the opponent.
	Dispatched bool
}

// Step is what one Game operation produced.
type Step struct {
	Events []Event
	// Dispatch is set when the operation handed the turn to the opponent.
	Dispatch *opponent.Request
	// Finished is set when the operation ended the game.
	Finished bool
}

// Game is one session: the live position, its ledger, the clock and the
// pending/terminal flags. It is not safe for concurrent use; Controller
// serialises every call onto its loop.
type Game struct {
	id         string
	generation uint64
	settings   domain.Settings
	rules      *rules.Engine
	now        func() time.Time

	current  rules.Position
	ledger   *ledger.Ledger
	cursor   int
	clock    *clock.Clock
	pending  bool
	terminal Terminal

	lastFailure string
	startedAt   time.Time
	endedAt     time.Time
}

// NewGame builds a fresh session from settings. Nothing is dispatched
// until Start is called.
func NewGame(engine *rules.Engine, id string, generation uint64, settings domain.Settings, now func() time.Time) (*Game, error) {
	if engine == nil {
		return nil, errors.New("rules engine is required")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	clk, err := clock.FromTimeControl(settings.TimeControl)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	initial := engine.Initial()
	return &Game{
		id:         id,
		generation: generation,
		settings:   settings,
		rules:      engine,
		now:        now,
		current:    initial,
		ledger:     ledger.New(initial),
		clock:      clk,
		startedAt:  now(),
	}, nil
}

func (g *Game) ID() string                { return g.id }
func (g *Game) Generation() uint64        { return g.generation }
func (g *Game) Settings() domain.Settings { return g.settings }
func (g *Game) Current() rules.Position   { return g.current }
func (g *Game) Pending() bool             { return g.pending }
func (g *Game) Terminal() Terminal        { return g.terminal }
func (g *Game) Clock() *clock.Clock       { return g.clock }
func (g *Game) Cursor() int               { return g.cursor }

// Start runs the side to move's clock and, when that side belongs to the
// opponent, dispatches the first request.
func (g *Game) Start() Step {
	g.clock.StartOrSwitch(g.current.Turn())
	step := Step{Events: []Event{g.event(EventGameStarted, func(ev *Event) {
		ev.Side = g.settings.PlayerColor
		ev.FEN = g.current.FEN()
	})}}
	if g.current.Turn() != g.settings.PlayerColor {
		g.dispatch(&step)
	}
	return step
}

// SubmitHuman validates and applies the player's move. A rejected
// submission leaves the game untouched.
func (g *Game) SubmitHuman(from, to, promo string) (MoveOutcome, Step, error) {
	switch {
	case g.terminal.IsSet():
		return MoveOutcome{Terminal: g.terminal}, Step{}, ErrGameOver
	case g.pending:
		return MoveOutcome{}, Step{}, ErrOpponentPending
	case g.clock.Expired(g.current.Turn()):
		return MoveOutcome{}, Step{}, ErrClockExpired
	case g.current.Turn() != g.settings.PlayerColor:
		return MoveOutcome{}, Step{}, ErrNotPlayerTurn
	}

	res, err := g.rules.Apply(g.current, from, to, promo)
	if err != nil {
		return MoveOutcome{}, Step{}, fmt.Errorf("%w: %w", ErrIllegalMove, err)
	}

	var step Step
	g.apply(res, &step)
	if !step.Finished {
		g.dispatch(&step)
	}
	return MoveOutcome{Accepted: true, Terminal: g.terminal, Dispatched: step.Dispatch != nil}, step, nil
}

// Retry re-dispatches after a failed opponent request.
func (g *Game) Retry() (Step, error) {
	switch {
	case g.terminal.IsSet():
		return Step{}, ErrGameOver
	case g.pending:
		return Step{}, ErrOpponentPending
	case g.current.Turn() == g.settings.PlayerColor:
		return Step{}, ErrNothingToRetry
	}
	var step Step
	g.dispatch(&step)
	return step, nil
}

// ApplyOpponentReply handles the reply to the request tagged gen.
func (g *Game) ApplyOpponentReply(gen uint64, move string) Step {
	if gen != g.generation || !g.pending {
		return Step{}
	}
	g.pending = false
	if g.terminal.IsSet() {
		return Step{}
	}

	res, err := g.rules.ApplyNotation(g.current, move)
	if err != nil {
		return g.fail(fmt.Sprintf("illegal opponent move %q: %v", strings.TrimSpace(move), err))
	}
	var step Step
	g.apply(res, &step)
	return step
}

// FailOpponent handles a transport failure of the request tagged gen.
func (g *Game) FailOpponent(gen uint64, cause error) Step {
	if gen != g.generation || !g.pending {
		return Step{}
	}
	g.pending = false
	if g.terminal.IsSet() {
		return Step{}
	}
	reason := "opponent request failed"
	if cause != nil {
		reason = cause.Error()
	}
	return g.fail(reason)
}

// Tick advances the clock by one interval. Expiry ends the game on time.
func (g *Game) Tick() Step {
	if g.terminal.IsSet() {
		return Step{}
	}
	res := g.clock.Tick()
	if !res.Ticked {
		return Step{}
	}
	step := Step{Events: []Event{g.event(EventClockTick, func(ev *Event) {
		ev.Side = res.Side
		ev.Remaining = res.Remaining
		ev.Bounded = true
	})}}
	if res.Expired {
		g.finish(Terminal{Kind: TerminalTimeout, Loser: res.Side, Winner: res.Side.Opposite(), Method: "timeout"}, &step)
	}
	return step
}

// Navigate moves the display cursor. Nothing else changes.
func (g *Game) Navigate(index int) (Step, error) {
	if _, err := g.ledger.At(index); err != nil {
		return Step{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	g.cursor = index
	return Step{Events: []Event{g.event(EventCursorMoved, func(ev *Event) { ev.Cursor = index })}}, nil
}

func (g *Game) apply(res rules.Result, step *Step) {
	g.current = res.Position
	g.cursor = g.ledger.Append(res.Position, res.UCI, res.SAN)
	g.lastFailure = ""

	step.Events = append(step.Events, g.event(EventMoveApplied, func(ev *Event) {
		ev.Side = res.Mover
		ev.Label = res.UCI
		ev.SAN = res.SAN
		ev.FEN = res.Position.FEN()
		ev.Ply = res.Position.Ply()
	}))

	switch {
	case res.Checkmate:
		g.finish(Terminal{Kind: TerminalCheckmate, Winner: res.Winner, Loser: res.Winner.Opposite(), Method: res.Method}, step)
	case res.Draw:
		g.finish(Terminal{Kind: TerminalDraw, Method: res.Method}, step)
	default:
		g.clock.StartOrSwitch(res.Position.Turn())
	}
}

func (g *Game) dispatch(step *Step) {
	g.pending = true
	step.Dispatch = &opponent.Request{
		FEN:        g.current.FEN(),
		Difficulty: g.settings.Difficulty,
		StartFEN:   g.current.StartFEN(),
		Moves:      g.current.Moves(),
	}
	step.Events = append(step.Events, g.event(EventOpponentThinking, func(ev *Event) {
		ev.Side = g.current.Turn()
		ev.FEN = g.current.FEN()
	}))
}

func (g *Game) fail(reason string) Step {
	g.lastFailure = reason
	return Step{Events: []Event{g.event(EventOpponentFailed, func(ev *Event) {
		ev.Side = g.current.Turn()
		ev.Reason = reason
	})}}
}

func (g *Game) finish(t Terminal, step *Step) {
	g.terminal = t
	g.endedAt = g.now()
	g.clock.Stop()
	step.Finished = true
	step.Events = append(step.Events, g.event(EventGameTerminal, func(ev *Event) {
		ev.Terminal = t
		ev.Side = t.Winner
	}))
}

func (g *Game) event(kind EventKind, fill func(*Event)) Event {
	ev := Event{Kind: kind, SessionID: g.id, Generation: g.generation}
	if fill != nil {
		fill(&ev)
	}
	return ev
}

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-web/internal/clock"
	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/opponent"
	"github.com/park285/cheese-chess-web/internal/rules"
)

const (
	defaultOpponentTimeout = 30 * time.Second
	recordTimeout          = 5 * time.Second
)

// Recorder receives every game that reaches a terminal state.
type Recorder interface {
	Record(ctx context.Context, game domain.FinishedGame) error
}

type Config struct {
	PlayerID string
	Rules    *rules.Engine
	Opponent opponent.Client
	Recorder Recorder
	Logger   *zap.Logger

	// OpponentTimeout bounds one opponent request.
	OpponentTimeout time.Duration
	NewTicker       TickerFactory
	Now             func() time.Time
	NewID           func() string
}

type opponentReply struct {
	generation uint64
	move       string
	err        error
}

// Controller owns one Game on a single goroutine. Public methods post work
// onto that goroutine and wait for it, so handlers never interleave.
type Controller struct {
	playerID        string
	rules           *rules.Engine
	opponent        opponent.Client
	recorder        Recorder
	logger          *zap.Logger
	opponentTimeout time.Duration
	newTicker       TickerFactory
	now             func() time.Time
	newID           func() string
	hub             *Hub

	cmds      chan func()
	replies   chan opponentReply
	done      chan struct{}
	stopped   chan struct{}
	closing   sync.Once
	lastSeen  atomic.Int64
	recorders sync.WaitGroup

	// owned by the loop goroutine
	game       *Game
	generation uint64
	cancelOpp  context.CancelFunc
	ticker     Ticker
	tickEpoch  uint64
}

// NewController starts the loop and a first game with settings.
func NewController(cfg Config, settings domain.Settings) (*Controller, error) {
	if cfg.Rules == nil {
		return nil, errors.New("rules engine is required")
	}
	if cfg.Opponent == nil {
		return nil, errors.New("opponent client is required")
	}
	c := &Controller{
		playerID:        cfg.PlayerID,
		rules:           cfg.Rules,
		opponent:        cfg.Opponent,
		recorder:        cfg.Recorder,
		logger:          cfg.Logger,
		opponentTimeout: cfg.OpponentTimeout,
		newTicker:       cfg.NewTicker,
		now:             cfg.Now,
		newID:           cfg.NewID,
		cmds:            make(chan func()),
		replies:         make(chan opponentReply),
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.opponentTimeout <= 0 {
		c.opponentTimeout = defaultOpponentTimeout
	}
	if c.newTicker == nil {
		c.newTicker = NewRealTicker
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	c.hub = NewHub(c.logger)
	c.touch()

	if err := c.reset(settings); err != nil {
		return nil, err
	}
	go c.run()
	return c, nil
}

func (c *Controller) PlayerID() string { return c.playerID }

// LastSeen is the last time a public method was called.
func (c *Controller) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Controller) Subscribe(buffer int) *Subscription {
	return c.hub.Subscribe(buffer)
}

// SubmitHumanMove applies the player's move against the live position.
func (c *Controller) SubmitHumanMove(ctx context.Context, from, to, promo string) (MoveOutcome, error) {
	var (
		out MoveOutcome
		err error
	)
	if cerr := c.do(ctx, func() {
		var step Step
		out, step, err = c.game.SubmitHuman(from, to, promo)
		if err != nil {
			c.logger.Debug("session_move_rejected",
				zap.String("session", c.game.ID()), zap.String("from", from), zap.String("to", to), zap.Error(err))
			return
		}
		c.commit(step)
	}); cerr != nil {
		return MoveOutcome{}, cerr
	}
	return out, err
}

// RetryOpponent re-sends the live position after a failed request.
func (c *Controller) RetryOpponent(ctx context.Context) error {
	var err error
	if cerr := c.do(ctx, func() {
		var step Step
		step, err = c.game.Retry()
		if err == nil {
			c.commit(step)
		}
	}); cerr != nil {
		return cerr
	}
	return err
}

func (c *Controller) NavigateToHalfMove(ctx context.Context, index int) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if cerr := c.do(ctx, func() {
		var step Step
		step, err = c.game.Navigate(index)
		if err == nil {
			c.commit(step)
		}
		snap = c.game.Snapshot()
	}); cerr != nil {
		return Snapshot{}, cerr
	}
	return snap, err
}

// StartNewGame discards the current session, including any reply still in
// flight, and starts a new one from settings.
func (c *Controller) StartNewGame(ctx context.Context, settings domain.Settings) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if cerr := c.do(ctx, func() {
		if err = c.reset(settings); err == nil {
			snap = c.game.Snapshot()
		}
	}); cerr != nil {
		return Snapshot{}, cerr
	}
	return snap, err
}

func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := c.do(ctx, func() { snap = c.game.Snapshot() }); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Close stops the loop, cancels any opponent request and waits for pending
// archive writes.
func (c *Controller) Close() error {
	c.closing.Do(func() {
		close(c.done)
		<-c.stopped
		c.recorders.Wait()
		c.hub.Close()
	})
	return nil
}

func (c *Controller) do(ctx context.Context, fn func()) error {
	c.touch()
	finished := make(chan struct{})
	select {
	case c.cmds <- func() { fn(); c.syncTicker(); close(finished) }:
	case <-c.done:
		return ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		var tickC <-chan time.Time
		if c.ticker != nil {
			tickC = c.ticker.C()
		}
		select {
		case fn := <-c.cmds:
			fn()
		case r := <-c.replies:
			c.handleReply(r)
		case <-tickC:
			c.commit(c.game.Tick())
		case <-c.done:
			c.cancelInflight()
			c.stopTicker()
			return
		}
		c.syncTicker()
	}
}

func (c *Controller) reset(settings domain.Settings) error {
	game, err := NewGame(c.rules, c.newID(), c.generation+1, settings, c.now)
	if err != nil {
		return err
	}
	c.cancelInflight()
	c.generation++
	c.game = game
	c.logger.Info("session_game_started",
		zap.String("player", c.playerID),
		zap.String("session", game.ID()),
		zap.Uint64("generation", game.Generation()),
		zap.String("difficulty", string(settings.Difficulty)),
		zap.String("color", string(settings.PlayerColor)),
		zap.String("time_control", string(settings.TimeControl)),
	)
	c.commit(game.Start())
	c.syncTicker()
	return nil
}

func (c *Controller) handleReply(r opponentReply) {
	if r.generation != c.game.Generation() {
		c.logger.Debug("session_stale_reply_dropped",
			zap.Uint64("reply_generation", r.generation), zap.Uint64("generation", c.game.Generation()))
		return
	}
	c.cancelOpp = nil
	if r.err != nil {
		if !c.game.Terminal().IsSet() {
			c.logger.Warn("opponent_request_failed", zap.String("session", c.game.ID()), zap.Error(r.err))
		}
		c.commit(c.game.FailOpponent(r.generation, r.err))
		return
	}
	step := c.game.ApplyOpponentReply(r.generation, r.move)
	for _, ev := range step.Events {
		if ev.Kind == EventOpponentFailed {
			c.logger.Warn("opponent_reply_rejected", zap.String("session", c.game.ID()), zap.String("move", r.move))
		}
	}
	c.commit(step)
}

func (c *Controller) commit(step Step) {
	for _, ev := range step.Events {
		if ev.Kind == EventMoveApplied {
			c.logger.Debug("session_move_applied",
				zap.String("session", ev.SessionID), zap.String("side", string(ev.Side)), zap.String("move", ev.Label))
		}
		c.hub.Publish(ev)
	}
	if step.Dispatch != nil {
		c.dispatch(*step.Dispatch)
	}
	if step.Finished {
		c.cancelInflight()
		c.record()
	}
}

func (c *Controller) dispatch(req opponent.Request) {
	c.cancelInflight()
	gen := c.game.Generation()
	ctx, cancel := context.WithTimeout(context.Background(), c.opponentTimeout)
	c.cancelOpp = cancel
	go func() {
		defer cancel()
		move, err := c.opponent.RequestMove(ctx, req)
		select {
		case c.replies <- opponentReply{generation: gen, move: move, err: err}:
		case <-c.done:
		}
	}()
}

func (c *Controller) cancelInflight() {
	if c.cancelOpp != nil {
		c.cancelOpp()
		c.cancelOpp = nil
	}
}

func (c *Controller) record() {
	term := c.game.Terminal()
	c.logger.Info("session_game_finished",
		zap.String("session", c.game.ID()),
		zap.String("kind", string(term.Kind)),
		zap.String("winner", string(term.Winner)),
		zap.String("result", term.Result()),
	)
	if c.recorder == nil {
		return
	}
	fg := c.game.Finished(c.playerID)
	c.recorders.Add(1)
	go func() {
		defer c.recorders.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := c.recorder.Record(ctx, fg); err != nil {
			c.logger.Warn("session_record_failed", zap.String("session", fg.SessionID), zap.Error(err))
		}
	}()
}

// syncTicker keeps one live ticker while the clock runs a bounded side.
func (c *Controller) syncTicker() {
	clk := c.game.Clock()
	if clk.State() != clock.Running || !clk.Bounded(clk.Active()) {
		c.stopTicker()
		return
	}
	if c.ticker != nil && c.tickEpoch == clk.Epoch() {
		return
	}
	c.stopTicker()
	c.ticker = c.newTicker(clock.TickInterval)
	c.tickEpoch = clk.Epoch()
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Controller) touch() {
	c.lastSeen.Store(c.now().UnixNano())
}

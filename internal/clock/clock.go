package clock

import (
	"time"

	"github.com/park285/cheese-chess-web/internal/domain"
)

// TickInterval is the fixed decrement applied per tick.
const TickInterval = time.Second

type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// TickResult reports what a single tick did.
type TickResult struct {
	Ticked    bool
	Side      domain.Side
	Remaining time.Duration
	Expired   bool
}

type sideClock struct {
	remaining time.Duration
	bounded   bool
	expired   bool
}

// Clock is a two-sided countdown with discrete one-second accounting.
// It is a pure state machine; the owner drives Tick from its own timer.
type Clock struct {
	white  sideClock
	black  sideClock
	state  State
	active domain.Side
	epoch  uint64
}

// New builds a stopped clock. bounded=false means neither side counts down.
func New(budget time.Duration, bounded bool) *Clock {
	if budget < 0 {
		budget = 0
	}
	return &Clock{
		white: sideClock{remaining: budget, bounded: bounded},
		black: sideClock{remaining: budget, bounded: bounded},
	}
}

// FromTimeControl builds a clock from a named control such as "3min".
func FromTimeControl(tc domain.TimeControl) (*Clock, error) {
	budget, bounded, err := tc.Budget()
	if err != nil {
		return nil, err
	}
	return New(budget, bounded), nil
}

// StartOrSwitch runs side's clock and restarts the tick schedule.
func (c *Clock) StartOrSwitch(side domain.Side) {
	c.state = Running
	c.active = side
	c.epoch++
}

func (c *Clock) Stop() {
	if c.state == Stopped {
		return
	}
	c.state = Stopped
	c.epoch++
}

// Tick charges one second to the running side, floored at zero. Expiry is
// reported once, after which the clock stops itself.
func (c *Clock) Tick() TickResult {
	if c.state != Running {
		return TickResult{}
	}
	sc := c.side(c.active)
	if !sc.bounded || sc.expired {
		return TickResult{Side: c.active, Remaining: sc.remaining}
	}

	sc.remaining -= TickInterval
	if sc.remaining < 0 {
		sc.remaining = 0
	}
	res := TickResult{Ticked: true, Side: c.active, Remaining: sc.remaining}
	if sc.remaining == 0 {
		sc.expired = true
		res.Expired = true
		c.Stop()
	}
	return res
}

func (c *Clock) State() State { return c.state }

// Active is the side whose clock last started; meaningful while Running.
func (c *Clock) Active() domain.Side { return c.active }

// Epoch changes on every start, switch or stop.
func (c *Clock) Epoch() uint64 { return c.epoch }

func (c *Clock) Remaining(side domain.Side) time.Duration {
	return c.side(side).remaining
}

func (c *Clock) Bounded(side domain.Side) bool {
	return c.side(side).bounded
}

// AnyBounded reports whether at least one side counts down.
func (c *Clock) AnyBounded() bool {
	return c.white.bounded || c.black.bounded
}

// Expired reports whether side has run out of time.
func (c *Clock) Expired(side domain.Side) bool {
	sc := c.side(side)
	return sc.bounded && (sc.expired || sc.remaining == 0)
}

func (c *Clock) side(s domain.Side) *sideClock {
	if s == domain.Black {
		return &c.black
	}
	return &c.white
}

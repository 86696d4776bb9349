// Package clock implements a two-sided countdown with per-move increment.
package clock

import (
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/board"
)

// DefaultTick is the decrement granularity of a running clock.
const DefaultTick = 100 * time.Millisecond

// TickFunc receives both remaining times after every tick.
type TickFunc func(white, black time.Duration)

// TimeoutFunc receives the side whose time ran out.
type TimeoutFunc func(flagged board.Color)

// Option customises a Clock.
type Option func(*Clock)

// WithTick sets the tick granularity.
func WithTick(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithNow replaces the time source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		if now != nil {
			c.now = now
		}
	}
}

// Clock tracks remaining time for both sides. Only the active side's time elapses,
// and only between Start and Stop. Once stopped a clock never runs again.
type Clock struct {
	mu        sync.Mutex
	white     time.Duration
	black     time.Duration
	increment time.Duration
	active    board.Color
	mark      time.Time
	running   bool
	stopped   bool
	flagged   board.Color

	tick time.Duration
	now  func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a stopped clock with white to move.
func New(tc TimeControl, opts ...Option) *Clock {
	c := &Clock{
		white:     tc.Base,
		black:     tc.Base,
		increment: tc.Increment,
		active:    board.White,
		tick:      DefaultTick,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins decrementing the active side. It is a no-op on a running or
// stopped clock. onTimeout fires at most once, and never after Stop.
// Callbacks run on the clock goroutine without the clock lock held.
func (c *Clock) Start(onTick TickFunc, onTimeout TimeoutFunc) {
	c.mu.Lock()
	if c.running || c.stopped {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mark = c.now()
	c.mu.Unlock()

	c.wg.Add(1)
	go c.loop(onTick, onTimeout)
}

func (c *Clock) loop(onTick TickFunc, onTimeout TimeoutFunc) {
	defer c.wg.Done()
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			white, black, flagged, done := c.advance()
			if done {
				if flagged != "" && onTimeout != nil {
					onTimeout(flagged)
				}
				return
			}
			if onTick != nil {
				onTick(white, black)
			}
		}
	}
}

// advance settles elapsed time and detects expiry. done means the loop must exit;
// flagged is set only for the call that observed the expiry.
func (c *Clock) advance() (white, black time.Duration, flagged board.Color, done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return 0, 0, "", true
	}
	c.settle()
	if *c.slot(c.active) <= 0 {
		*c.slot(c.active) = 0
		c.flagged = c.active
		c.halt()
		return c.white, c.black, c.flagged, true
	}
	return c.white, c.black, "", false
}

// RecordMove ends color's turn: elapsed time is charged to the active side, the
// increment is credited to color and the other side becomes active.
func (c *Clock) RecordMove(color board.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.running {
		c.settle()
	}
	s := c.slot(color)
	*s += c.increment
	c.active = color.Opponent()
}

// Stop halts the clock permanently. It is idempotent and does not wait for the
// clock goroutine, so it may be called from a clock callback.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.running {
		c.settle()
	}
	c.halt()
}

// Wait blocks until the clock goroutine has exited.
func (c *Clock) Wait() { c.wg.Wait() }

// Remaining returns color's time left, never negative.
func (c *Clock) Remaining(color board.Color) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clamp(c.live(color))
}

// Times returns both sides' remaining time, never negative.
func (c *Clock) Times() (white, black time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clamp(c.live(board.White)), clamp(c.live(board.Black))
}

// Flagged reports the side whose time is exhausted, including a running side whose
// time ran out since the last tick.
func (c *Clock) Flagged() (board.Color, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flagged != "" {
		return c.flagged, true
	}
	if c.running && !c.stopped && c.live(c.active) <= 0 {
		return c.active, true
	}
	return "", false
}

// Active returns the side whose time is elapsing.
func (c *Clock) Active() board.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Running reports whether the clock has started and not yet stopped.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && !c.stopped
}

func (c *Clock) slot(color board.Color) *time.Duration {
	if color == board.White {
		return &c.white
	}
	return &c.black
}

// settle charges the time since mark to the active side. Caller holds mu.
func (c *Clock) settle() {
	now := c.now()
	*c.slot(c.active) -= now.Sub(c.mark)
	c.mark = now
}

// live is the stored value minus the unsettled interval for the active side.
func (c *Clock) live(color board.Color) time.Duration {
	v := *c.slot(color)
	if color == c.active && c.running && !c.stopped {
		v -= c.now().Sub(c.mark)
	}
	return v
}

func (c *Clock) halt() {
	c.stopped = true
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

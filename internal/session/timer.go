package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickInterval is the countdown refresh rate. 100ms keeps the rendered
// countdown visually smooth without burning the event loop.
const TickInterval = 100 * time.Millisecond

// Countdown computes smooth remaining-time values from a server-anchored
// deadline, correcting for client/server clock drift. Remaining values are
// non-increasing for a fixed deadline even if a late drift correction would
// nudge the clock backwards, and the expiry signal fires exactly once per
// armed deadline.
type Countdown struct {
	clock clockwork.Clock

	mu       sync.Mutex
	offset   time.Duration // serverTime - localTime
	deadline time.Time     // in server time
	armed    bool
	fired    bool
	last     time.Duration
}

// NewCountdown creates a countdown bound to the given clock.
func NewCountdown(clock clockwork.Clock) *Countdown {
	return &Countdown{clock: clock}
}

// SyncServerTime records the clock offset implied by a server timestamp
// observed "now". Every inbound event carries one, so drift is corrected
// continuously rather than on a dedicated sync exchange.
func (c *Countdown) SyncServerTime(serverNow time.Time) {
	if serverNow.IsZero() {
		return
	}
	c.mu.Lock()
	c.offset = serverNow.Sub(c.clock.Now())
	c.mu.Unlock()
}

// Arm sets a new server-time deadline, resetting monotonicity and the
// expiry latch.
func (c *Countdown) Arm(deadline time.Time) {
	c.mu.Lock()
	c.deadline = deadline
	c.armed = true
	c.fired = false
	c.last = -1
	c.mu.Unlock()
}

// ArmRemaining arms a deadline the given duration from the corrected now.
// Used by round types where the server streams remaining seconds instead of
// a fixed end time.
func (c *Countdown) ArmRemaining(remaining time.Duration) {
	c.mu.Lock()
	c.deadline = c.clock.Now().Add(c.offset).Add(remaining)
	c.armed = true
	c.fired = false
	c.last = -1
	c.mu.Unlock()
}

// Disarm clears the deadline; Remaining reports zero until re-armed.
func (c *Countdown) Disarm() {
	c.mu.Lock()
	c.armed = false
	c.fired = false
	c.last = -1
	c.mu.Unlock()
}

// Remaining returns the current remaining time, clamped to be non-increasing
// between Arm calls. The boolean reports whether this call crossed zero, and
// is true at most once per armed deadline.
func (c *Countdown) Remaining() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed {
		return 0, false
	}

	now := c.clock.Now().Add(c.offset)
	remaining := c.deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	// A drift correction between ticks must not make the countdown jump up.
	if c.last >= 0 && remaining > c.last {
		remaining = c.last
	}
	c.last = remaining

	if remaining == 0 && !c.fired {
		c.fired = true
		return 0, true
	}
	return remaining, false
}

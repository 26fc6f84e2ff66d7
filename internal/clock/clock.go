// Package clock provides an injectable monotonic time source.
package clock

import (
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a pending callback scheduled by a Clock.
type Timer interface {
	// Stop cancels the timer. It returns false if the timer already fired
	// or was already stopped.
	Stop() bool
}

// Clock is the time source used by notification timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct {
	clockwork.Clock
}

// Real returns a Clock backed by the runtime's monotonic clock.
func Real() Clock {
	return realClock{Clock: clockwork.NewRealClock()}
}

func (c realClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.Clock.AfterFunc(d, f)
}

// Fake is a manually advanced Clock for tests, driven by a clockwork fake.
// Callbacks run synchronously inside Advance, in deadline order; timers
// sharing a deadline fire in the order they were scheduled.
type Fake struct {
	fc *clockwork.FakeClock

	mu      sync.Mutex
	pending []*fakeTimer
}

type fakeTimer struct {
	clock    *Fake
	timer    clockwork.Timer
	deadline time.Time
	fn       func()
	done     bool
}

// NewFake creates a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{fc: clockwork.NewFakeClockAt(start)}
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	return c.fc.Now()
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{
		clock:    c,
		timer:    c.fc.NewTimer(d),
		deadline: c.fc.Now().Add(d),
		fn:       f,
	}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the clock forward by d, firing every timer whose deadline
// falls inside the window. Timers scheduled by fired callbacks are honoured
// if they also fall inside the window.
func (c *Fake) Advance(d time.Duration) {
	target := c.fc.Now().Add(d)

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.mu.Unlock()
			break
		}
		next.done = true
		c.removeLocked(next)
		c.mu.Unlock()

		if step := next.deadline.Sub(c.fc.Now()); step > 0 {
			c.fc.Advance(step)
		}
		<-next.timer.Chan()
		next.fn()
	}

	if rest := target.Sub(c.fc.Now()); rest > 0 {
		c.fc.Advance(rest)
	}
}

// Pending returns the number of scheduled timers that have not fired.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Fake) nextDueLocked(target time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range c.pending {
		if t.deadline.After(target) {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) {
			next = t
		}
	}
	return next
}

func (c *Fake) removeLocked(t *fakeTimer) {
	c.pending = slices.DeleteFunc(c.pending, func(p *fakeTimer) bool { return p == t })
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	t.clock.removeLocked(t)
	t.timer.Stop()
	return true
}

package display

import (
	"sync"
	"time"

	"github.com/jmylchreest/overlay/internal/clock"
)

// Lifetime is a pausable countdown. Pausing keeps the remaining time and
// resuming schedules only what is left. A negative duration never expires.
type Lifetime struct {
	mu       sync.Mutex
	clock    clock.Clock
	duration time.Duration
	onExpire func()

	remaining time.Duration
	startedAt time.Time
	timer     clock.Timer
	gen       int // invalidates timers that fire after Stop or Pause
	running   bool
	paused    bool
	expired   bool
}

// NewLifetime creates a stopped countdown of d that calls onExpire once it
// runs out.
func NewLifetime(c clock.Clock, d time.Duration, onExpire func()) *Lifetime {
	if c == nil {
		c = clock.Real()
	}
	return &Lifetime{
		clock:     c,
		duration:  d,
		onExpire:  onExpire,
		remaining: d,
	}
}

// Start begins the countdown from the full duration.
func (l *Lifetime) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()
	l.remaining = l.duration
	l.paused = false
	l.expired = false
	l.running = true
	l.scheduleLocked()
}

// Pause freezes the countdown. It is a no-op when not running or already paused.
func (l *Lifetime) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running || l.paused {
		return
	}
	if l.duration >= 0 {
		l.remaining -= l.clock.Now().Sub(l.startedAt)
		if l.remaining < 0 {
			l.remaining = 0
		}
	}
	l.stopLocked()
	l.paused = true
}

// Resume continues a paused countdown with the remaining time.
func (l *Lifetime) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running || !l.paused {
		return
	}
	l.paused = false
	l.scheduleLocked()
}

// Stop cancels the countdown without calling onExpire.
func (l *Lifetime) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()
	l.running = false
	l.paused = false
}

// Remaining returns the time left. Infinite lifetimes return a negative value.
func (l *Lifetime) Remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.duration < 0 {
		return l.duration
	}
	if l.expired {
		return 0
	}
	if !l.running || l.paused {
		return l.remaining
	}
	left := l.remaining - l.clock.Now().Sub(l.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Paused reports whether the countdown is paused.
func (l *Lifetime) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// Expired reports whether onExpire has been triggered.
func (l *Lifetime) Expired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.expired
}

// Duration returns the full countdown length.
func (l *Lifetime) Duration() time.Duration {
	return l.duration
}

func (l *Lifetime) scheduleLocked() {
	l.startedAt = l.clock.Now()
	if l.duration < 0 {
		return
	}
	l.gen++
	gen := l.gen
	l.timer = l.clock.AfterFunc(l.remaining, func() { l.fire(gen) })
}

func (l *Lifetime) stopLocked() {
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Lifetime) fire(gen int) {
	l.mu.Lock()
	if gen != l.gen || !l.running || l.paused {
		l.mu.Unlock()
		return
	}
	l.timer = nil
	l.running = false
	l.expired = true
	l.remaining = 0
	fn := l.onExpire
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

package display

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/overlay/internal/clock"
	"github.com/jmylchreest/overlay/internal/config"
	"github.com/jmylchreest/overlay/internal/model"
	"github.com/jmylchreest/overlay/internal/queue"
)

// CloseReason is why a notification left the screen. Values match the
// org.freedesktop.Notifications NotificationClosed reasons.
type CloseReason uint32

const (
	// ReasonExpired means the countdown ran out.
	ReasonExpired CloseReason = 1
	// ReasonDismissed means the user dismissed it.
	ReasonDismissed CloseReason = 2
	// ReasonClosed means it was closed by a call or removed from the queue
	// by something else (dismiss-all, eviction).
	ReasonClosed CloseReason = 3
)

// String returns the string representation of CloseReason.
func (r CloseReason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonDismissed:
		return "dismissed"
	case ReasonClosed:
		return "closed"
	default:
		return "undefined"
	}
}

// CloseCallback is called once per notification when it starts leaving or
// is removed from the queue externally.
type CloseCallback func(n model.Notification, reason CloseReason)

// State is a snapshot of one mounted notification.
type State struct {
	Notification model.Notification
	Remaining    time.Duration // negative for infinite lifetimes
	Paused       bool
	Leaving      bool
}

// entry tracks one mounted notification.
type entry struct {
	notification model.Notification
	lifetime     *Lifetime
	hovered      bool
	leaving      bool
	removal      clock.Timer
}

// Manager mounts a Lifetime for each queued notification and removes
// notifications from the queue once they expire or are dismissed.
type Manager struct {
	queue  *queue.Queue
	clock  clock.Clock
	logger *slog.Logger

	mu           sync.Mutex
	pauseOnHover bool
	exitDelay    time.Duration
	entries      map[string]*entry
	order        []string // mount order, matches the queue

	onClose CloseCallback
	detach  func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source for lifetimes and the exit delay.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewManager creates a display manager for q. The manager observes every
// removal from q from this point on, so notifications that leave the queue
// before they are mounted still reach the close callback.
func NewManager(q *queue.Queue, cfg *config.Config, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	m := &Manager{
		queue:        q,
		clock:        clock.Real(),
		logger:       logger,
		pauseOnHover: cfg.Behavior.PauseOnHover,
		exitDelay:    cfg.Behavior.ExitDelay.Duration(),
		entries:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.detach = q.OnRemove(m.handleRemoved)
	return m
}

// SetCloseCallback sets the callback for close events.
func (m *Manager) SetCloseCallback(cb CloseCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = cb
}

// Run mounts the current queue and keeps the manager in sync with queue
// events until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	events, err := m.queue.Subscribe()
	if err != nil {
		return &Error{Message: "failed to subscribe to queue", Cause: err}
	}
	defer m.queue.Unsubscribe(events)

	m.Sync()
	m.logger.Info("display manager started")

	for {
		select {
		case _, ok := <-events:
			if !ok {
				m.Stop()
				return nil
			}
			m.Sync()
		case <-ctx.Done():
			m.Stop()
			m.logger.Info("display manager stopped")
			return nil
		}
	}
}

// Sync reconciles mounted lifetimes with the queue: new notifications are
// mounted and a changed type or duration restarts the countdown. Removals
// are handled as they happen, not here.
func (m *Manager) Sync() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Listing under m.mu orders Sync against handleRemoved: a notification
	// removed after the list is taken is unmounted once Sync returns.
	list := m.queue.List()
	order := make([]string, 0, len(list))
	for _, n := range list {
		order = append(order, n.ID)

		e, exists := m.entries[n.ID]
		switch {
		case !exists:
			m.mountLocked(n)
		case e.leaving:
			e.notification = n
		case n.Duration != e.notification.Duration || n.Type != e.notification.Type:
			e.lifetime.Stop()
			e.notification = n
			e.lifetime = m.newLifetimeLocked(n)
			e.lifetime.Start()
			if e.hovered && m.pauseOnHover {
				e.lifetime.Pause()
			}
			m.logger.Debug("notification lifetime restarted", "id", n.ID, "duration", n.Duration)
		default:
			e.notification = n
		}
	}

	m.order = order
}

// handleRemoved unmounts notifications that left the queue. Anything that
// was not already leaving, including entries never mounted, is reported
// as closed.
func (m *Manager) handleRemoved(ev queue.Event) {
	m.mu.Lock()
	var gone []model.Notification
	for _, n := range ev.Removed {
		e, exists := m.entries[n.ID]
		if !exists {
			gone = append(gone, n)
			continue
		}
		m.unmountLocked(n.ID, e)
		if !e.leaving {
			gone = append(gone, e.notification)
		}
	}
	cb := m.onClose
	m.mu.Unlock()

	for _, n := range gone {
		m.logger.Debug("notification removed from queue", "id", n.ID, "event", ev.Type)
		if cb != nil {
			cb(n, ReasonClosed)
		}
	}
}

// Hover pauses (true) or resumes (false) a notification's countdown when
// pause-on-hover is enabled. Unknown ids are ignored.
func (m *Manager) Hover(id string, hovering bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.entries[id]
	if !exists {
		return
	}
	e.hovered = hovering
	if !m.pauseOnHover || e.leaving {
		return
	}
	if hovering {
		e.lifetime.Pause()
	} else {
		e.lifetime.Resume()
	}
}

// Dismiss starts the leaving phase of a notification as a user dismissal.
func (m *Manager) Dismiss(id string) {
	m.Close(id, ReasonDismissed)
}

// Close starts the leaving phase of a notification: its OnDismiss runs, the
// close callback is told why, and it is removed from the queue after the
// exit delay. Unknown or already leaving ids are ignored.
func (m *Manager) Close(id string, reason CloseReason) {
	m.mu.Lock()
	e, exists := m.entries[id]
	if !exists || e.leaving {
		m.mu.Unlock()
		return
	}

	e.leaving = true
	e.lifetime.Stop()
	delay := m.exitDelay
	if delay > 0 {
		e.removal = m.clock.AfterFunc(delay, func() { m.remove(id) })
	}
	n := e.notification
	cb := m.onClose
	m.mu.Unlock()

	m.logger.Debug("notification leaving", "id", id, "reason", reason)

	if n.OnDismiss != nil {
		n.OnDismiss()
	}
	if cb != nil {
		cb(n, reason)
	}
	if delay <= 0 {
		m.remove(id)
	}
}

// CloseAll dismisses every mounted notification.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id, ReasonDismissed)
	}
}

// Detach stops observing queue removals. A detached manager no longer
// reports notifications that leave the queue.
func (m *Manager) Detach() {
	if m.detach != nil {
		m.detach()
	}
}

// Stop cancels every pending timer and unmounts everything. The queue is
// left untouched.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		e.lifetime.Stop()
		if e.removal != nil {
			e.removal.Stop()
		}
	}
	m.entries = make(map[string]*entry)
	m.order = nil
}

// States returns snapshots of the mounted notifications in queue order.
func (m *Manager) States() []State {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]State, 0, len(m.order))
	for _, id := range m.order {
		e, ok := m.entries[id]
		if !ok {
			continue
		}
		result = append(result, State{
			Notification: e.notification,
			Remaining:    e.lifetime.Remaining(),
			Paused:       e.lifetime.Paused(),
			Leaving:      e.leaving,
		})
	}
	return result
}

// State returns the snapshot of a single mounted notification.
func (m *Manager) State(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return State{}, false
	}
	return State{
		Notification: e.notification,
		Remaining:    e.lifetime.Remaining(),
		Paused:       e.lifetime.Paused(),
		Leaving:      e.leaving,
	}, true
}

// ActiveCount returns the number of mounted notifications, leaving ones included.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// UpdateConfig applies hot-reloaded behavior settings. Disabling
// pause-on-hover resumes any paused countdown.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldPause := m.pauseOnHover
	m.pauseOnHover = cfg.Behavior.PauseOnHover
	m.exitDelay = cfg.Behavior.ExitDelay.Duration()

	for _, e := range m.entries {
		if e.leaving || !e.hovered {
			continue
		}
		switch {
		case oldPause && !m.pauseOnHover:
			e.lifetime.Resume()
		case !oldPause && m.pauseOnHover:
			e.lifetime.Pause()
		}
	}

	m.logger.Debug("display manager config updated",
		"pause_on_hover", m.pauseOnHover,
		"exit_delay", m.exitDelay,
	)
}

func (m *Manager) mountLocked(n model.Notification) {
	e := &entry{notification: n}
	e.lifetime = m.newLifetimeLocked(n)
	m.entries[n.ID] = e
	e.lifetime.Start()

	m.logger.Debug("notification mounted", "id", n.ID, "type", n.Type, "duration", n.Duration)
}

func (m *Manager) newLifetimeLocked(n model.Notification) *Lifetime {
	id := n.ID
	return NewLifetime(m.clock, n.Duration, func() { m.Close(id, ReasonExpired) })
}

// remove dismisses a leaving notification from the queue; handleRemoved
// unmounts it.
func (m *Manager) remove(id string) {
	m.mu.Lock()
	e, exists := m.entries[id]
	if !exists || !e.leaving {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.queue.Dismiss(id)

	// The queue no longer held it, so no removal was reported.
	m.mu.Lock()
	if e, exists := m.entries[id]; exists && e.leaving {
		m.unmountLocked(id, e)
	}
	m.mu.Unlock()
}

func (m *Manager) unmountLocked(id string, e *entry) {
	e.lifetime.Stop()
	if e.removal != nil {
		e.removal.Stop()
	}
	delete(m.entries, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Error represents a display-related error.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Package queue provides the bounded notification queue.
package queue

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/overlay/internal/clock"
	"github.com/jmylchreest/overlay/internal/model"
)

// DefaultMaxNotifications is the cap used when none is configured.
const DefaultMaxNotifications = 5

// EventType indicates the type of queue change.
type EventType int

const (
	// EventAdd indicates a notification was appended.
	EventAdd EventType = iota
	// EventUpdate indicates a notification was patched.
	EventUpdate
	// EventDismiss indicates a notification was removed by id.
	EventDismiss
	// EventDismissAll indicates the queue was cleared.
	EventDismissAll
	// EventEvict indicates notifications were dropped to honour the cap.
	EventEvict
)

// String returns the string representation of EventType.
func (t EventType) String() string {
	switch t {
	case EventAdd:
		return "add"
	case EventUpdate:
		return "update"
	case EventDismiss:
		return "dismiss"
	case EventDismissAll:
		return "dismiss-all"
	case EventEvict:
		return "evict"
	default:
		return "unknown"
	}
}

// Event signals queue content changes.
type Event struct {
	Type EventType
	IDs  []string
	// Removed holds copies of notifications that left the queue
	// (dismiss, dismiss-all, evict).
	Removed []model.Notification
}

// Durations maps a notification type to its default lifetime.
type Durations map[model.Type]time.Duration

// DefaultDurations returns the built-in per-type lifetimes.
func DefaultDurations() Durations {
	return Durations{
		model.TypeDefault: 4 * time.Second,
		model.TypeInfo:    4 * time.Second,
		model.TypeWarning: 4 * time.Second,
		model.TypeError:   4 * time.Second,
		model.TypeSuccess: 2 * time.Second,
		model.TypeLoading: model.Infinite,
	}
}

// For returns the default lifetime for t.
func (d Durations) For(t model.Type) time.Duration {
	if v, ok := d[t]; ok {
		return v
	}
	if t == model.TypeLoading {
		return model.Infinite
	}
	return d[model.TypeDefault]
}

// ErrQueueClosed is returned by Subscribe after Close.
var ErrQueueClosed = errors.New("queue is closed")

// Queue is an ordered, bounded list of notifications. Inserting beyond the
// cap drops the oldest entries.
type Queue struct {
	mu            sync.RWMutex
	notifications []model.Notification
	max           int
	durations     Durations
	clock         clock.Clock
	logger        *slog.Logger

	subscribers []chan Event
	removeHooks []*removeHook
	closed      bool
}

type removeHook struct {
	fn func(Event)
}

// Option configures a Queue.
type Option func(*Queue)

// WithMax sets the maximum number of retained notifications.
func WithMax(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.max = n
		}
	}
}

// WithDurations sets the per-type default lifetimes.
func WithDurations(d Durations) Option {
	return func(q *Queue) {
		if d != nil {
			q.durations = d
		}
	}
}

// WithClock sets the time source used for timestamps and ids.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) {
		if c != nil {
			q.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// New creates an empty Queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		notifications: make([]model.Notification, 0),
		max:           DefaultMaxNotifications,
		durations:     DefaultDurations(),
		clock:         clock.Real(),
		logger:        slog.Default(),
		subscribers:   make([]chan Event, 0),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add appends a notification and returns its new id. Any id or timestamp
// already set on n is replaced. An empty type becomes TypeDefault and a zero
// duration becomes the per-type default.
func (q *Queue) Add(n model.Notification) string {
	now := q.clock.Now()
	id, err := model.NewID(now)
	if err != nil {
		// crypto/rand failure; fall back to a timestamp id so Add never fails
		q.logger.Warn("failed to generate notification id", "error", err)
		id = now.Format("20060102T150405.000000000")
	}

	n.ID = id
	n.Timestamp = now
	if n.Type == "" || !n.Type.Valid() {
		n.Type = model.TypeDefault
	}

	q.mu.Lock()
	if n.Duration == 0 {
		n.Duration = q.durations.For(n.Type)
		n.DefaultDuration = true
	}

	q.notifications = append(q.notifications, n)
	evicted := q.truncateLocked()

	q.notifyLocked(Event{Type: EventAdd, IDs: []string{id}})
	var hooks []func(Event)
	var evict Event
	if len(evicted) > 0 {
		evict = evictEvent(evicted)
		q.notifyLocked(evict)
		hooks = q.removeHooksLocked()
	}
	q.mu.Unlock()

	q.logger.Debug("notification added", "id", id, "type", n.Type, "duration", n.Duration, "evicted", len(evicted))
	runHooks(hooks, evict)
	return id
}

// Dismiss removes the notification with the given id. Unknown ids are ignored.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return
	}

	removed := q.notifications[idx]
	q.notifications = append(q.notifications[:idx], q.notifications[idx+1:]...)

	ev := Event{
		Type:    EventDismiss,
		IDs:     []string{id},
		Removed: []model.Notification{removed},
	}
	q.notifyLocked(ev)
	hooks := q.removeHooksLocked()
	q.mu.Unlock()

	runHooks(hooks, ev)
}

// Update merges the patch into the notification with the given id.
// Unknown ids are ignored. When the type changes and the duration was
// defaulted (and the patch does not set one) the duration follows the new
// type's default.
func (q *Queue) Update(id string, p model.Patch) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return
	}

	n := &q.notifications[idx]
	n.Apply(p)
	if p.Type != nil && p.Duration == nil && n.DefaultDuration {
		n.Duration = q.durations.For(n.Type)
	}

	q.notifyLocked(Event{Type: EventUpdate, IDs: []string{id}})
}

// DismissAll clears the queue.
func (q *Queue) DismissAll() {
	q.mu.Lock()
	removed := q.notifications
	q.notifications = make([]model.Notification, 0)

	ids := make([]string, len(removed))
	for i, n := range removed {
		ids[i] = n.ID
	}
	ev := Event{Type: EventDismissAll, IDs: ids, Removed: removed}
	q.notifyLocked(ev)
	var hooks []func(Event)
	if len(removed) > 0 {
		hooks = q.removeHooksLocked()
	}
	q.mu.Unlock()

	runHooks(hooks, ev)
}

// List returns a copy of the queued notifications, oldest first.
func (q *Queue) List() []model.Notification {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]model.Notification, len(q.notifications))
	copy(result, q.notifications)
	return result
}

// Get returns the notification with the given id.
func (q *Queue) Get(id string) (model.Notification, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return model.Notification{}, false
	}
	return q.notifications[idx], true
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.notifications)
}

// Max returns the current cap.
func (q *Queue) Max() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.max
}

// SetMax changes the cap. Shrinking evicts the oldest entries immediately.
func (q *Queue) SetMax(n int) {
	if n <= 0 {
		return
	}

	q.mu.Lock()
	q.max = n
	evicted := q.truncateLocked()
	if len(evicted) == 0 {
		q.mu.Unlock()
		return
	}
	ev := evictEvent(evicted)
	q.notifyLocked(ev)
	hooks := q.removeHooksLocked()
	q.mu.Unlock()

	runHooks(hooks, ev)
}

// SetDurations replaces the per-type default lifetimes for future additions.
func (q *Queue) SetDurations(d Durations) {
	if d == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.durations = d
}

// Subscribe returns a channel that receives change events.
// Delivery is non-blocking: a slow subscriber misses events and should
// re-read List on the next one it receives.
func (q *Queue) Subscribe() (<-chan Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	ch := make(chan Event, 32)
	q.subscribers = append(q.subscribers, ch)
	return ch, nil
}

// OnRemove registers fn to run whenever notifications leave the queue
// (dismiss, dismiss-all, evict). Unlike Subscribe, delivery is never
// dropped: fn runs synchronously on the mutating goroutine after the queue
// lock is released, so it may call back into the queue. The returned
// function unregisters fn.
func (q *Queue) OnRemove(fn func(Event)) func() {
	h := &removeHook{fn: fn}

	q.mu.Lock()
	q.removeHooks = append(q.removeHooks, h)
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		for i, other := range q.removeHooks {
			if other == h {
				q.removeHooks = append(q.removeHooks[:i], q.removeHooks[i+1:]...)
				return
			}
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (q *Queue) Unsubscribe(ch <-chan Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, sub := range q.subscribers {
		if sub == ch {
			q.subscribers = append(q.subscribers[:i], q.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close closes all subscriber channels.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	for _, ch := range q.subscribers {
		close(ch)
	}
	q.subscribers = nil
	return nil
}

// truncateLocked keeps the most recent max entries and returns the dropped ones.
func (q *Queue) truncateLocked() []model.Notification {
	over := len(q.notifications) - q.max
	if over <= 0 {
		return nil
	}

	evicted := make([]model.Notification, over)
	copy(evicted, q.notifications[:over])

	kept := make([]model.Notification, q.max)
	copy(kept, q.notifications[over:])
	q.notifications = kept

	return evicted
}

func (q *Queue) indexLocked(id string) int {
	for i := range q.notifications {
		if q.notifications[i].ID == id {
			return i
		}
	}
	return -1
}

// notifyLocked sends an event to all subscribers (non-blocking).
func (q *Queue) notifyLocked(event Event) {
	for _, ch := range q.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

func (q *Queue) removeHooksLocked() []func(Event) {
	if len(q.removeHooks) == 0 {
		return nil
	}
	hooks := make([]func(Event), len(q.removeHooks))
	for i, h := range q.removeHooks {
		hooks[i] = h.fn
	}
	return hooks
}

func runHooks(hooks []func(Event), ev Event) {
	for _, fn := range hooks {
		fn(ev)
	}
}

func evictEvent(evicted []model.Notification) Event {
	ids := make([]string, len(evicted))
	for i, n := range evicted {
		ids[i] = n.ID
	}
	return Event{Type: EventEvict, IDs: ids, Removed: evicted}
}

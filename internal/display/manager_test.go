package display

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlay/internal/clock"
	"github.com/jmylchreest/overlay/internal/config"
	"github.com/jmylchreest/overlay/internal/model"
	"github.com/jmylchreest/overlay/internal/queue"
)

type closeRecord struct {
	id     string
	reason CloseReason
}

type closeRecorder struct {
	mu      sync.Mutex
	records []closeRecord
}

func (r *closeRecorder) callback(n model.Notification, reason CloseReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, closeRecord{id: n.ID, reason: reason})
}

func (r *closeRecorder) all() []closeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]closeRecord(nil), r.records...)
}

func newTestManager(t *testing.T, mutate func(*config.Config)) (*Manager, *queue.Queue, *clock.Fake, *closeRecorder) {
	t.Helper()
	c := clock.NewFake(epoch)
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	q := queue.New(queue.WithClock(c), queue.WithDurations(cfg.Durations()))
	m := NewManager(q, cfg, nil, WithClock(c))
	rec := &closeRecorder{}
	m.SetCloseCallback(rec.callback)
	return m, q, c, rec
}

func TestManager_ExpiryAndExitDelay(t *testing.T) {
	m, q, c, rec := newTestManager(t, nil)

	dismissed := 0
	id := q.Add(model.Notification{Message: "saved", Duration: 5 * time.Second, OnDismiss: func() { dismissed++ }})
	m.Sync()
	require.Equal(t, 1, m.ActiveCount())

	c.Advance(5 * time.Second)
	assert.Equal(t, 1, dismissed)
	assert.Equal(t, []closeRecord{{id: id, reason: ReasonExpired}}, rec.all())

	st, ok := m.State(id)
	require.True(t, ok)
	assert.True(t, st.Leaving)
	_, queued := q.Get(id)
	assert.True(t, queued, "still queued during the exit delay")

	c.Advance(299 * time.Millisecond)
	_, queued = q.Get(id)
	assert.True(t, queued)

	c.Advance(time.Millisecond)
	_, queued = q.Get(id)
	assert.False(t, queued)
	assert.Equal(t, 0, m.ActiveCount())

	// A later sync must not report the removal again
	m.Sync()
	assert.Len(t, rec.all(), 1)
	assert.Equal(t, 1, dismissed)
}

func TestManager_HoverPausesCountdown(t *testing.T) {
	m, q, c, rec := newTestManager(t, nil)

	id := q.Add(model.Notification{Message: "hover me", Duration: 5000 * time.Millisecond})
	m.Sync()

	c.Advance(2000 * time.Millisecond)
	m.Hover(id, true)

	st, _ := m.State(id)
	assert.True(t, st.Paused)
	assert.Equal(t, 3000*time.Millisecond, st.Remaining)

	c.Advance(time.Minute)
	assert.Empty(t, rec.all())

	m.Hover(id, false)
	c.Advance(2999 * time.Millisecond)
	assert.Empty(t, rec.all())

	c.Advance(time.Millisecond)
	assert.Equal(t, []closeRecord{{id: id, reason: ReasonExpired}}, rec.all())
}

func TestManager_HoverDisabled(t *testing.T) {
	m, q, c, rec := newTestManager(t, func(cfg *config.Config) {
		cfg.Behavior.PauseOnHover = false
	})

	id := q.Add(model.Notification{Message: "m", Duration: time.Second})
	m.Sync()
	m.Hover(id, true)

	c.Advance(time.Second)
	assert.Len(t, rec.all(), 1)
}

func TestManager_Dismiss(t *testing.T) {
	m, q, c, rec := newTestManager(t, nil)

	dismissed := 0
	id := q.Add(model.Notification{Message: "bye", Type: model.TypeLoading, OnDismiss: func() { dismissed++ }})
	m.Sync()

	m.Dismiss(id)
	m.Dismiss(id)
	assert.Equal(t, 1, dismissed)
	assert.Equal(t, []closeRecord{{id: id, reason: ReasonDismissed}}, rec.all())

	c.Advance(300 * time.Millisecond)
	assert.Equal(t, 0, q.Len())

	assert.NotPanics(t, func() { m.Dismiss("unknown") })
}

func TestManager_InfiniteNeverExpires(t *testing.T) {
	m, q, c, rec := newTestManager(t, nil)

	id := q.Add(model.Notification{Message: "working", Type: model.TypeLoading})
	m.Sync()
	c.Advance(24 * time.Hour)

	assert.Empty(t, rec.all())
	st, ok := m.State(id)
	require.True(t, ok)
	assert.Equal(t, model.Infinite, st.Remaining)
}

func TestManager_UpdateRestartsLifetime(t *testing.T) {
	m, q, c, rec := newTestManager(t, nil)

	id := q.Add(model.Notification{Message: "loading", Type: model.TypeLoading})
	m.Sync()
	c.Advance(10 * time.Second)

	// loading -> success re-resolves the default duration (2s)
	q.Update(id, model.Patch{Type: model.Ref(model.TypeSuccess), Message: model.Ref("done")})
	m.Sync()

	st, _ := m.State(id)
	assert.Equal(t, "done", st.Notification.Message)
	assert.Equal(t, 2*time.Second, st.Remaining)

	c.Advance(2 * time.Second)
	assert.Equal(t, []closeRecord{{id: id, reason: ReasonExpired}}, rec.all())
}

func TestManager_MessageUpdateKeepsCountdown(t *testing.T) {
	m, q, c, _ := newTestManager(t, nil)

	id := q.Add(model.Notification{Message: "a", Duration: 4 * time.Second})
	m.Sync()
	c.Advance(time.Second)

	q.Update(id, model.Patch{Message: model.Ref("b")})
	m.Sync()

	st, _ := m.State(id)
	assert.Equal(t, "b", st.Notification.Message)
	assert.Equal(t, 3*time.Second, st.Remaining)
}

func TestManager_ExternalRemoval(t *testing.T) {
	m, q, c, rec := newTestManager(t, nil)

	dismissed := 0
	id := q.Add(model.Notification{Message: "m", Duration: time.Second, OnDismiss: func() { dismissed++ }})
	m.Sync()

	q.Dismiss(id)
	m.Sync()

	assert.Equal(t, 0, m.ActiveCount())
	assert.Equal(t, []closeRecord{{id: id, reason: ReasonClosed}}, rec.all())
	assert.Equal(t, 0, dismissed, "OnDismiss is only run for expiry and dismissal")

	c.Advance(time.Minute)
	assert.Equal(t, 0, c.Pending(), "timers are cancelled on unmount")
}

func TestManager_CloseAll(t *testing.T) {
	m, q, c, rec := newTestManager(t, nil)

	for range 3 {
		q.Add(model.Notification{Message: "m"})
	}
	m.Sync()
	m.CloseAll()

	assert.Len(t, rec.all(), 3)
	for _, st := range m.States() {
		assert.True(t, st.Leaving)
	}

	c.Advance(300 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
}

func TestManager_ZeroExitDelay(t *testing.T) {
	m, q, _, _ := newTestManager(t, func(cfg *config.Config) {
		cfg.Behavior.ExitDelay = 0
	})

	id := q.Add(model.Notification{Message: "m"})
	m.Sync()
	m.Dismiss(id)

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_StatesOrder(t *testing.T) {
	m, q, _, _ := newTestManager(t, nil)

	first := q.Add(model.Notification{Message: "1"})
	second := q.Add(model.Notification{Message: "2"})
	m.Sync()

	states := m.States()
	require.Len(t, states, 2)
	assert.Equal(t, first, states[0].Notification.ID)
	assert.Equal(t, second, states[1].Notification.ID)
}

func TestManager_UpdateConfig(t *testing.T) {
	m, q, c, rec := newTestManager(t, nil)

	id := q.Add(model.Notification{Message: "m", Duration: 2 * time.Second})
	m.Sync()
	m.Hover(id, true)
	c.Advance(time.Minute)
	require.Empty(t, rec.all())

	cfg := config.DefaultConfig()
	cfg.Behavior.PauseOnHover = false
	cfg.Behavior.ExitDelay = config.Duration(50 * time.Millisecond)
	m.UpdateConfig(cfg)

	c.Advance(2 * time.Second)
	require.Len(t, rec.all(), 1)

	c.Advance(50 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
}

func TestManager_Run(t *testing.T) {
	m, q, c, rec := newTestManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	id := q.Add(model.Notification{Message: "m", Duration: time.Second})
	require.Eventually(t, func() bool {
		_, ok := m.State(id)
		return ok
	}, time.Second, 5*time.Millisecond)

	c.Advance(time.Second)
	assert.Len(t, rec.all(), 1)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_RunClosedQueue(t *testing.T) {
	m, q, _, _ := newTestManager(t, nil)
	require.NoError(t, q.Close())

	err := m.Run(context.Background())
	var displayErr *Error
	require.True(t, errors.As(err, &displayErr))
	assert.ErrorIs(t, err, queue.ErrQueueClosed)
}

func TestCloseReason_String(t *testing.T) {
	assert.Equal(t, "expired", ReasonExpired.String())
	assert.Equal(t, "dismissed", ReasonDismissed.String())
	assert.Equal(t, "closed", ReasonClosed.String())
	assert.Equal(t, "undefined", CloseReason(9).String())
}

func TestManager_RemovedBeforeMount(t *testing.T) {
	m, q, _, rec := newTestManager(t, nil)
	q.SetMax(1)

	dismissed := 0
	first := q.Add(model.Notification{Message: "1", OnDismiss: func() { dismissed++ }})
	second := q.Add(model.Notification{Message: "2"})
	assert.Equal(t, []closeRecord{{id: first, reason: ReasonClosed}}, rec.all())
	assert.Equal(t, 0, dismissed)

	m.Sync()
	q.DismissAll()
	assert.Equal(t, []closeRecord{
		{id: first, reason: ReasonClosed},
		{id: second, reason: ReasonClosed},
	}, rec.all())
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_LeavingRemovalReportedOnce(t *testing.T) {
	m, q, c, rec := newTestManager(t, nil)

	id := q.Add(model.Notification{Message: "m"})
	m.Sync()
	m.Dismiss(id)

	// Removed by something else during the exit delay
	q.Dismiss(id)
	c.Advance(time.Second)

	assert.Equal(t, []closeRecord{{id: id, reason: ReasonDismissed}}, rec.all())
	assert.Equal(t, 0, m.ActiveCount())
	assert.Equal(t, 0, c.Pending())
}

func TestManager_Detach(t *testing.T) {
	m, q, _, rec := newTestManager(t, nil)
	m.Detach()

	q.Add(model.Notification{Message: "m"})
	q.DismissAll()
	assert.Empty(t, rec.all())
}

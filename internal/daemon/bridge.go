package daemon

import (
	"log/slog"
	"sync"

	"github.com/jmylchreest/overlay/internal/clock"
	"github.com/jmylchreest/overlay/internal/config"
	"github.com/jmylchreest/overlay/internal/dbus"
	"github.com/jmylchreest/overlay/internal/display"
	"github.com/jmylchreest/overlay/internal/model"
	"github.com/jmylchreest/overlay/internal/queue"
)

// SoundPlayer plays notification sounds.
type SoundPlayer interface {
	PlayForType(t model.Type) error
	PlayFile(path string) error
	UpdateConfig(cfg *config.Config)
}

// HistoryRecorder stores notifications after they leave the display.
type HistoryRecorder interface {
	Record(n model.Notification) error
}

// Bridge connects the D-Bus notification server to the notification queue
// and reports display closes back over D-Bus.
type Bridge struct {
	mu     sync.Mutex
	logger *slog.Logger
	clock  clock.Clock

	server  *dbus.NotificationServer
	queue   *queue.Queue
	display *display.Manager
	ids     *IDMap

	sounds   SoundPlayer
	history  HistoryRecorder
	notifier *InternalNotifier

	cfg  *config.Config
	meta map[string]requestMeta
}

// requestMeta keeps the parts of a D-Bus request that matter after the
// notification is queued.
type requestMeta struct {
	transient     bool
	defaultAction bool
}

// DefaultAction is the action key invoked when the user dismisses a
// notification that offers it.
const DefaultAction = "default"

// NewBridge creates a Bridge. server may be nil in monitor mode.
func NewBridge(server *dbus.NotificationServer, q *queue.Queue, dm *display.Manager, cfg *config.Config, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Bridge{
		logger:    logger,
		clock:     clock.Real(),
		server:    server,
		queue:     q,
		display:   dm,
		ids:       NewIDMap(),
		cfg:       cfg,
		meta:      make(map[string]requestMeta),
	}
}

// SetClock sets the clock used to stamp dismissal times.
func (b *Bridge) SetClock(c clock.Clock) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = c
}

// SetSounds sets the sound player. A nil player disables sounds.
func (b *Bridge) SetSounds(p SoundPlayer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sounds = p
}

// SetHistory sets the history recorder. A nil recorder disables history.
func (b *Bridge) SetHistory(h HistoryRecorder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = h
}

// SetNotifier sets the notifier used to surface audio failures.
func (b *Bridge) SetNotifier(n *InternalNotifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifier = n
}

// IDs returns the D-Bus id map.
func (b *Bridge) IDs() *IDMap {
	return b.ids
}

// Attach installs the bridge handlers on the server and display manager.
func (b *Bridge) Attach() {
	if b.server != nil {
		b.server.SetNotifyHandler(b.HandleNotify)
		b.server.SetCloseHandler(b.HandleClose)
	}
	b.display.SetCloseCallback(b.HandleDisplayClose)
}

// HandleNotify routes a D-Bus Notify request into the queue. A replaced id,
// or a D-Bus id that is still queued, updates the existing notification in
// place.
func (b *Bridge) HandleNotify(req *dbus.Request, dbusID uint32, replaced bool) {
	b.mu.Lock()
	dismissible := b.cfg.Behavior.Dismissible
	b.mu.Unlock()

	n := req.Notification(dismissible)

	if id, ok := b.ids.NotificationID(dbusID); ok {
		if _, queued := b.queue.Get(id); queued {
			b.queue.Update(id, patchFor(n))
			b.track(id, req)
			b.logger.Debug("notification replaced", "dbus_id", dbusID, "id", id, "replaced", replaced)
			b.playSound(req, n.Type)
			return
		}
		b.ids.RemoveByDBusID(dbusID)
	}

	id := b.queue.Add(n)
	b.ids.Register(dbusID, id)
	b.track(id, req)

	b.logger.Debug("notification queued",
		"dbus_id", dbusID,
		"id", id,
		"app", req.AppName,
		"type", n.Type,
	)
	b.playSound(req, n.Type)
}

// HandleClose handles CloseNotification for an active D-Bus id.
func (b *Bridge) HandleClose(dbusID uint32) {
	id, ok := b.ids.NotificationID(dbusID)
	if ok {
		if _, mounted := b.display.State(id); mounted {
			b.display.Close(id, display.ReasonClosed)
			return
		}
		// Not mounted yet; drop it directly.
		b.ids.Remove(id)
		b.queue.Dismiss(id)
	}
	b.emitClosed(dbusID, dbus.CloseReasonClosed)
}

// HandleDisplayClose is the display manager close callback. It emits
// NotificationClosed and records the notification in history unless it was
// transient. A user dismissal of a notification offering the default action
// invokes that action first.
func (b *Bridge) HandleDisplayClose(n model.Notification, reason display.CloseReason) {
	b.mu.Lock()
	meta := b.meta[n.ID]
	delete(b.meta, n.ID)
	history := b.history
	now := b.clock.Now()
	b.mu.Unlock()

	if dbusID, ok := b.ids.Remove(n.ID); ok {
		if reason == display.ReasonDismissed && meta.defaultAction {
			b.invokeAction(dbusID, DefaultAction)
		}
		b.emitClosed(dbusID, dbus.CloseReason(reason))
	}

	if history == nil || meta.transient {
		return
	}
	n.DismissedAt = now
	n.DismissReason = reason.String()
	n.OnDismiss = nil
	if err := history.Record(n); err != nil {
		b.logger.Warn("failed to record notification history", "id", n.ID, "error", err)
	}
}

// ApplyConfig pushes a reloaded config into every component.
func (b *Bridge) ApplyConfig(cfg *config.Config) {
	b.mu.Lock()
	b.cfg = cfg
	sounds := b.sounds
	b.mu.Unlock()

	b.queue.SetMax(cfg.Queue.MaxNotifications)
	b.queue.SetDurations(cfg.Durations())
	b.display.UpdateConfig(cfg)
	if sounds != nil {
		sounds.UpdateConfig(cfg)
	}
	b.logger.Debug("config applied", "max_notifications", cfg.Queue.MaxNotifications)
}

func (b *Bridge) emitClosed(dbusID uint32, reason dbus.CloseReason) {
	if b.server == nil {
		return
	}
	if err := b.server.CloseWithReason(dbusID, reason); err != nil {
		b.logger.Warn("failed to emit NotificationClosed signal", "dbus_id", dbusID, "error", err)
	}
}

func (b *Bridge) invokeAction(dbusID uint32, key string) {
	if b.server == nil {
		return
	}
	if err := b.server.InvokeAction(dbusID, key); err != nil {
		b.logger.Warn("failed to emit ActionInvoked signal", "dbus_id", dbusID, "action", key, "error", err)
	}
}

func (b *Bridge) track(id string, req *dbus.Request) {
	meta := requestMeta{transient: req.Transient()}
	for _, a := range req.ParsedActions() {
		if a.Key == DefaultAction {
			meta.defaultAction = true
			break
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if meta == (requestMeta{}) {
		delete(b.meta, id)
		return
	}
	b.meta[id] = meta
}

func (b *Bridge) playSound(req *dbus.Request, t model.Type) {
	b.mu.Lock()
	sounds, notifier := b.sounds, b.notifier
	b.mu.Unlock()

	if sounds == nil || req.SuppressSound() {
		return
	}

	var err error
	if file := req.SoundFile(); file != "" {
		err = sounds.PlayFile(file)
	} else {
		err = sounds.PlayForType(t)
	}
	if err != nil {
		b.logger.Warn("failed to play notification sound", "type", t, "error", err)
		if notifier != nil {
			notifier.NotifyAudioError(err)
		}
	}
}

// patchFor builds the update applied when a D-Bus id is replaced. A zero
// duration leaves the lifetime to the queue's per-type default.
func patchFor(n model.Notification) model.Patch {
	p := model.Patch{
		Title:       model.Ref(n.Title),
		Message:     model.Ref(n.Message),
		Type:        model.Ref(n.Type),
		Dismissible: model.Ref(n.Dismissible),
	}
	if n.Duration != 0 {
		p.Duration = model.Ref(n.Duration)
	}
	return p
}

package daemon

import (
	"log/slog"
	"sync"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/overlay/internal/clock"
	"github.com/jmylchreest/overlay/internal/dbus"
	"github.com/jmylchreest/overlay/internal/model"
)

// DefaultMinInterval is how long a notice key stays rate-limited.
const DefaultMinInterval = 5 * time.Second

// InternalNotifier posts notices about overlayd itself (config reloads,
// audio failures) through the normal notification path. Repeats of the same
// key within the minimum interval are dropped.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger
	clock  clock.Clock

	notifyHandler func(req *dbus.Request) uint32

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration

	enabled bool
}

// NewInternalNotifier creates an enabled InternalNotifier.
func NewInternalNotifier(c clock.Clock, logger *slog.Logger) *InternalNotifier {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		clock:          c,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    DefaultMinInterval,
		enabled:        true,
	}
}

// SetNotifyHandler sets the function that delivers a notice, normally
// NotificationServer.NotifyInternal.
func (n *InternalNotifier) SetNotifyHandler(handler func(req *dbus.Request) uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifyHandler = handler
}

// SetEnabled enables or disables internal notices.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between notices with the same key.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify posts a notice unless it is disabled or rate-limited. It reports
// whether the notice was delivered.
func (n *InternalNotifier) Notify(key, summary, body string, typ model.Type) bool {
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return false
	}
	handler := n.notifyHandler
	if handler == nil {
		n.mu.Unlock()
		n.logger.Debug("internal notification skipped: no handler", "summary", summary)
		return false
	}

	now := n.clock.Now()
	if last, ok := n.lastNotifyTime[key]; ok && now.Sub(last) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("internal notification rate-limited", "key", key, "summary", summary)
		return false
	}
	n.lastNotifyTime[key] = now
	n.mu.Unlock()

	req := &dbus.Request{
		AppName: "overlayd",
		AppIcon: iconForType(typ),
		Summary: summary,
		Body:    body,
		Hints: map[string]godbus.Variant{
			"urgency":        godbus.MakeVariant(dbus.UrgencyForType(typ)),
			dbus.HintType:    godbus.MakeVariant(string(typ)),
			"transient":      godbus.MakeVariant(true),
			"desktop-entry":  godbus.MakeVariant("overlayd"),
			"suppress-sound": godbus.MakeVariant(true),
		},
		ExpireTimeout: -1,
	}

	n.logger.Debug("sending internal notification", "key", key, "summary", summary, "type", typ)
	handler(req)
	return true
}

// NotifyConfigReloaded reports a successful config reload.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Notify("config-reload", "Configuration Reloaded",
		"overlayd configuration has been reloaded.", model.TypeSuccess)
}

// NotifyConfigError reports a config file that failed to load.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify("config-error", "Configuration Error",
		"Failed to reload configuration: "+err.Error(), model.TypeWarning)
}

// NotifyStartup reports that the daemon is running.
func (n *InternalNotifier) NotifyStartup(version string) {
	n.Notify("startup", "overlayd Started",
		"Notification daemon "+version+" is now running.", model.TypeInfo)
}

// NotifyAudioError reports a sound that could not be played.
func (n *InternalNotifier) NotifyAudioError(err error) {
	n.Notify("audio-error", "Audio Error",
		"Failed to play notification sound: "+err.Error(), model.TypeWarning)
}

func iconForType(t model.Type) string {
	switch t {
	case model.TypeError:
		return "dialog-error"
	case model.TypeWarning:
		return "dialog-warning"
	case model.TypeSuccess:
		return "emblem-ok"
	default:
		return "dialog-information"
	}
}

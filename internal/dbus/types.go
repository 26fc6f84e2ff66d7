package dbus

import (
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/overlay/internal/model"
)

// CloseReason represents the reason for closing a notification.
// These values are defined by the freedesktop.org notification specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved/undefined per the freedesktop.org spec.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Urgency levels of the urgency hint.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// Hint names understood beyond the freedesktop.org set.
const (
	// HintType carries the notification type name ("success", "loading", ...).
	HintType = "x-overlay-type"
	// HintDismissible overrides whether the notification can be dismissed.
	HintDismissible = "x-overlay-dismissible"
)

// Request is an incoming D-Bus Notify call.
// It contains the raw parameters from the org.freedesktop.Notifications.Notify method.
type Request struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// Action represents a notification action with key and label.
type Action struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ParsedActions converts the D-Bus action array to structured form.
// D-Bus actions are passed as alternating key/label pairs.
func (r *Request) ParsedActions() []Action {
	actions := make([]Action, 0, len(r.Actions)/2)
	for i := 0; i+1 < len(r.Actions); i += 2 {
		actions = append(actions, Action{
			Key:   r.Actions[i],
			Label: r.Actions[i+1],
		})
	}
	return actions
}

// Urgency extracts the urgency hint. Returns UrgencyNormal if not specified.
func (r *Request) Urgency() int {
	if v, ok := r.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return int(b)
		}
	}
	return UrgencyNormal
}

// Category extracts the category hint.
func (r *Request) Category() string {
	return r.stringHint("category")
}

// SoundFile extracts the sound-file hint.
func (r *Request) SoundFile() string {
	return r.stringHint("sound-file")
}

// SuppressSound returns true if the suppress-sound hint is set.
func (r *Request) SuppressSound() bool {
	return r.boolHint("suppress-sound")
}

// Transient returns true if the transient hint is set.
// Transient notifications are not recorded to history.
func (r *Request) Transient() bool {
	return r.boolHint("transient")
}

// Type resolves the notification type: the x-overlay-type hint wins, then
// the urgency (low = info, critical = error, normal = default).
func (r *Request) Type() model.Type {
	if s := r.stringHint(HintType); s != "" {
		if t, err := model.ParseType(s); err == nil {
			return t
		}
	}
	return TypeForUrgency(r.Urgency())
}

// Duration maps expire_timeout to a notification duration: -1 asks for the
// per-type default (zero), 0 never expires, anything else is milliseconds.
func (r *Request) Duration() time.Duration {
	switch {
	case r.ExpireTimeout == 0:
		return model.Infinite
	case r.ExpireTimeout < 0:
		return 0
	default:
		return time.Duration(r.ExpireTimeout) * time.Millisecond
	}
}

// Notification converts the request into a queue notification.
// dismissible is used unless the x-overlay-dismissible hint is present.
func (r *Request) Notification(dismissible bool) model.Notification {
	if v, ok := r.Hints[HintDismissible]; ok {
		if b, ok := v.Value().(bool); ok {
			dismissible = b
		}
	}
	return model.Notification{
		Source:      r.AppName,
		Title:       r.Summary,
		Message:     r.Body,
		Type:        r.Type(),
		Duration:    r.Duration(),
		Dismissible: dismissible,
	}
}

func (r *Request) stringHint(name string) string {
	if v, ok := r.Hints[name]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

func (r *Request) boolHint(name string) bool {
	if v, ok := r.Hints[name]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// TypeForUrgency maps a freedesktop urgency level to a notification type.
func TypeForUrgency(urgency int) model.Type {
	switch urgency {
	case UrgencyLow:
		return model.TypeInfo
	case UrgencyCritical:
		return model.TypeError
	default:
		return model.TypeDefault
	}
}

// UrgencyForType maps a notification type to the closest urgency level.
func UrgencyForType(t model.Type) byte {
	switch t {
	case model.TypeInfo, model.TypeSuccess:
		return UrgencyLow
	case model.TypeError:
		return UrgencyCritical
	default:
		return UrgencyNormal
	}
}

// ExpireTimeout maps a notification duration to expire_timeout.
func ExpireTimeout(d time.Duration) int32 {
	switch {
	case d == model.Infinite:
		return 0
	case d <= 0:
		return -1
	default:
		return int32(d.Milliseconds())
	}
}

// ServerCapabilities lists the capabilities advertised by overlayd.
var ServerCapabilities = []string{
	"body",        // Support body text
	"persistence", // Record dismissed notifications to history
	"sound",       // Play sounds
	"x-overlay-types",
}

// ServerInfo contains information about the notification server.
type ServerInfo struct {
	Name        string // "overlayd"
	Vendor      string // "overlay"
	Version     string // Build version
	SpecVersion string // "1.2"
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:        "overlayd",
		Vendor:      "overlay",
		Version:     "dev", // Replaced by build-time version
		SpecVersion: "1.2",
	}
}

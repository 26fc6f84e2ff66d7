// Package model defines the core data structures for overlay.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"
)

// Type is the kind of a notification. It selects styling, sound and the
// default lifetime.
type Type string

// Notification types.
const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeLoading Type = "loading"
	TypeDefault Type = "default"
)

// Types lists every valid notification type.
func Types() []Type {
	return []Type{TypeSuccess, TypeError, TypeInfo, TypeWarning, TypeLoading, TypeDefault}
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, v := range Types() {
		if t == v {
			return true
		}
	}
	return false
}

// ParseType converts a string to a Type. An empty string yields TypeDefault.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeDefault, nil
	}
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// Infinite is the duration sentinel that suppresses auto-dismiss.
const Infinite time.Duration = -1

// Notification is a transient user-facing message.
type Notification struct {
	ID          string        `json:"id" yaml:"id"`
	Source      string        `json:"source,omitempty" yaml:"source,omitempty"`
	Title       string        `json:"title,omitempty" yaml:"title,omitempty"`
	Message     string        `json:"message" yaml:"message"`
	Type        Type          `json:"type" yaml:"type"`
	Duration    time.Duration `json:"duration" yaml:"duration"` // Infinite = never auto-dismiss
	Timestamp   time.Time     `json:"timestamp" yaml:"timestamp"`
	Dismissible bool          `json:"dismissible" yaml:"dismissible"`

	// DismissedAt is set when the notification leaves the queue (history only).
	DismissedAt time.Time `json:"dismissed_at,omitzero" yaml:"dismissed_at,omitempty"`
	// DismissReason records why it left (history only).
	DismissReason string `json:"dismiss_reason,omitempty" yaml:"dismiss_reason,omitempty"`

	// DefaultDuration is true when Duration was filled from the per-type default.
	DefaultDuration bool `json:"-" yaml:"-"`

	// OnDismiss runs when the notification expires or is dismissed.
	OnDismiss func() `json:"-" yaml:"-"`
}

// Validation errors.
var (
	ErrEmptyID      = errors.New("id cannot be empty")
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrInvalidType  = errors.New("invalid notification type")
	ErrBadDuration  = errors.New("duration must be positive or Infinite")
)

// NewID generates a time-ordered unique notification id.
func NewID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// NewNotification creates a dismissible default-type notification with a
// generated id and the current timestamp.
func NewNotification(source string) (*Notification, error) {
	now := time.Now()
	id, err := NewID(now)
	if err != nil {
		return nil, err
	}
	return &Notification{
		ID:          id,
		Source:      source,
		Type:        TypeDefault,
		Timestamp:   now,
		Dismissible: true,
	}, nil
}

// Validate checks that the notification has all required fields.
func (n *Notification) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if n.Message == "" && n.Title == "" {
		return ErrEmptyMessage
	}
	if !n.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, n.Type)
	}
	if n.Duration < 0 && n.Duration != Infinite {
		return ErrBadDuration
	}
	return nil
}

// IsInfinite reports whether the notification never auto-dismisses.
func (n *Notification) IsInfinite() bool {
	return n.Duration == Infinite
}

// Clone returns a copy of the notification.
func (n *Notification) Clone() *Notification {
	clone := *n
	return &clone
}

// RelativeTime returns a human-readable age such as "3 minutes ago".
func (n *Notification) RelativeTime() string {
	if n.Timestamp.IsZero() {
		return ""
	}
	return humanize.Time(n.Timestamp)
}

// MessageTruncated returns the message collapsed to one line and cut to
// maxLen characters, with "..." appended when cut.
func (n *Notification) MessageTruncated(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	msg := []rune(strings.Join(strings.Fields(n.Message), " "))
	if len(msg) <= maxLen {
		return string(msg)
	}
	if maxLen <= 3 {
		return string(msg[:maxLen])
	}
	return string(msg[:maxLen-3]) + "..."
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Message     *string
	Type        *Type
	Duration    *time.Duration
	Dismissible *bool
	OnDismiss   func()
}

// Ref returns a pointer to v, for building a Patch.
func Ref[T any](v T) *T {
	return &v
}

// Apply merges the patch into the notification. It reports whether the
// type or duration changed.
func (n *Notification) Apply(p Patch) (lifetimeChanged bool) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Message != nil {
		n.Message = *p.Message
	}
	if p.Type != nil && *p.Type != n.Type {
		n.Type = *p.Type
		lifetimeChanged = true
	}
	if p.Duration != nil {
		if *p.Duration != n.Duration {
			lifetimeChanged = true
		}
		n.Duration = *p.Duration
		n.DefaultDuration = false
	}
	if p.Dismissible != nil {
		n.Dismissible = *p.Dismissible
	}
	if p.OnDismiss != nil {
		n.OnDismiss = p.OnDismiss
	}
	return lifetimeChanged
}

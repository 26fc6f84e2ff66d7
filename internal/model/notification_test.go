package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotification(t *testing.T) {
	n, err := NewNotification("test")
	require.NoError(t, err)

	assert.Len(t, n.ID, 26)
	assert.Equal(t, "test", n.Source)
	assert.Equal(t, TypeDefault, n.Type)
	assert.True(t, n.Dismissible)
	assert.False(t, n.Timestamp.IsZero())
}

func TestNewID_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for range 100 {
		id, err := NewID(now)
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"", TypeDefault, false},
		{"success", TypeSuccess, false},
		{"ERROR", TypeError, false},
		{" loading ", TypeLoading, false},
		{"warning", TypeWarning, false},
		{"info", TypeInfo, false},
		{"critical", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotification_Validate(t *testing.T) {
	valid := func() *Notification {
		return &Notification{
			ID:       "01HZX",
			Message:  "hello",
			Type:     TypeInfo,
			Duration: 4 * time.Second,
		}
	}

	tests := []struct {
		name    string
		modify  func(*Notification)
		wantErr error
	}{
		{"valid notification", func(n *Notification) {}, nil},
		{"empty id", func(n *Notification) { n.ID = "" }, ErrEmptyID},
		{"empty message and title", func(n *Notification) { n.Message = "" }, ErrEmptyMessage},
		{"title only", func(n *Notification) { n.Message = ""; n.Title = "t" }, nil},
		{"bad type", func(n *Notification) { n.Type = "urgent" }, ErrInvalidType},
		{"infinite", func(n *Notification) { n.Duration = Infinite }, nil},
		{"negative duration", func(n *Notification) { n.Duration = -5 }, ErrBadDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid()
			tt.modify(n)
			err := n.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNotification_MessageTruncated(t *testing.T) {
	n := &Notification{Message: "line one\nline   two"}

	assert.Equal(t, "line one line two", n.MessageTruncated(100))
	assert.Equal(t, "line o...", n.MessageTruncated(9))
	assert.Equal(t, "lin", n.MessageTruncated(3))
	assert.Equal(t, "", n.MessageTruncated(0))
}

func TestNotification_RelativeTime(t *testing.T) {
	n := &Notification{}
	assert.Equal(t, "", n.RelativeTime())

	n.Timestamp = time.Now().Add(-3 * time.Minute)
	assert.Equal(t, "3 minutes ago", n.RelativeTime())
}

func TestNotification_Apply(t *testing.T) {
	n := &Notification{
		Message:         "Saving...",
		Type:            TypeLoading,
		Duration:        Infinite,
		DefaultDuration: true,
		Dismissible:     true,
	}

	changed := n.Apply(Patch{Message: Ref("Saved")})
	assert.False(t, changed)
	assert.Equal(t, "Saved", n.Message)

	changed = n.Apply(Patch{Type: Ref(TypeSuccess)})
	assert.True(t, changed)
	assert.Equal(t, TypeSuccess, n.Type)
	assert.True(t, n.DefaultDuration, "type change alone keeps the defaulted flag")

	changed = n.Apply(Patch{Duration: Ref(2 * time.Second), Dismissible: Ref(false)})
	assert.True(t, changed)
	assert.Equal(t, 2*time.Second, n.Duration)
	assert.False(t, n.DefaultDuration)
	assert.False(t, n.Dismissible)
}

func TestNotification_Clone(t *testing.T) {
	n := &Notification{ID: "a", Message: "m"}
	c := n.Clone()
	c.Message = "changed"
	assert.Equal(t, "m", n.Message)
}

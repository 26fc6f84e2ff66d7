package input

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlay/internal/model"
)

var importNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fixedUptime reports the machine as booted 24 hours before importNow.
func fixedUptime() (time.Duration, error) {
	return 24 * time.Hour, nil
}

const dunstFixture = `{
	"type": "array",
	"data": [[
		{
			"id": {"type": "INT", "data": 123},
			"appname": {"type": "STRING", "data": "firefox"},
			"summary": {"type": "STRING", "data": "Download Complete"},
			"body": {"type": "STRING", "data": "myfile.zip has finished downloading"},
			"timestamp": {"type": "INT", "data": 3600000000},
			"timeout": {"type": "INT", "data": 5000},
			"urgency": {"type": "INT", "data": 1},
			"category": {"type": "STRING", "data": "transfer.complete"}
		},
		{
			"id": {"type": "INT", "data": 124},
			"appname": {"type": "STRING", "data": "slack"},
			"summary": {"type": "STRING", "data": "New Message"},
			"body": {"type": "STRING", "data": "Hello\u0007 from John"},
			"timestamp": {"type": "INT", "data": 7200000000},
			"timeout": {"type": "INT", "data": 0},
			"urgency": {"type": "INT", "data": 2}
		}
	]]
}`

func TestDunstAdapter_Name(t *testing.T) {
	adapter := NewDunstAdapter()
	assert.Equal(t, "dunst", adapter.Name())
}

func TestParseDunstHistory(t *testing.T) {
	notifications, err := parseDunstHistory([]byte(dunstFixture), importNow, fixedUptime)
	require.NoError(t, err)
	require.Len(t, notifications, 2)

	boot := importNow.Add(-24 * time.Hour)

	n1 := notifications[0]
	assert.NotEmpty(t, n1.ID)
	assert.Equal(t, "firefox", n1.Source)
	assert.Equal(t, "Download Complete", n1.Title)
	assert.Equal(t, "myfile.zip has finished downloading", n1.Message)
	assert.Equal(t, model.TypeDefault, n1.Type)
	assert.Equal(t, 5*time.Second, n1.Duration)
	assert.Equal(t, boot.Add(time.Hour), n1.Timestamp)
	assert.True(t, n1.Dismissible)

	n2 := notifications[1]
	assert.Equal(t, "slack", n2.Source)
	assert.Equal(t, "Hello  from John", n2.Message, "control characters are replaced")
	assert.Equal(t, model.TypeError, n2.Type)
	assert.Equal(t, model.Infinite, n2.Duration)
	assert.Equal(t, boot.Add(2*time.Hour), n2.Timestamp)

	assert.Less(t, n1.ID, n2.ID, "ids follow the original timestamps")
}

func TestParseDunstHistory_UnknownUptime(t *testing.T) {
	notifications, err := parseDunstHistory([]byte(dunstFixture), importNow, nil)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, importNow, notifications[0].Timestamp)
}

func TestParseDunstHistory_Empty(t *testing.T) {
	notifications, err := parseDunstHistory([]byte(`{"type": "array", "data": [[]]}`), importNow, nil)
	require.NoError(t, err)
	assert.Empty(t, notifications)
}

func TestParseDunstHistory_InvalidJSON(t *testing.T) {
	_, err := parseDunstHistory([]byte(`{invalid json`), importNow, nil)

	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "dunst", adapterErr.Source)
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"normal string", "normal string"},
		{"with\nnewline", "with\nnewline"},
		{"with\ttab", "with\ttab"},
		{"  trimmed  ", "trimmed"},
		{"control\x00char", "control char"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeString(tt.input))
		})
	}
}

func TestDunstValue_String(t *testing.T) {
	tests := []struct {
		name     string
		value    dunstValue
		expected string
	}{
		{"string value", dunstValue{Type: "STRING", Data: "hello"}, "hello"},
		{"int value", dunstValue{Type: "INT", Data: float64(123)}, "123"},
		{"nil value", dunstValue{Type: "STRING", Data: nil}, ""},
		{"empty string", dunstValue{Type: "STRING", Data: ""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.String())
		})
	}
}

func TestDunstValue_Int64(t *testing.T) {
	tests := []struct {
		name     string
		value    dunstValue
		expected int64
	}{
		{"float64 value", dunstValue{Type: "INT", Data: float64(123)}, 123},
		{"string value", dunstValue{Type: "STRING", Data: "789"}, 789},
		{"bad string", dunstValue{Type: "STRING", Data: "x"}, 0},
		{"nil value", dunstValue{Type: "INT", Data: nil}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.Int64())
		})
	}
}

func TestNewAdapter(t *testing.T) {
	a, err := NewAdapter("stdin")
	require.NoError(t, err)
	assert.Equal(t, "stdin", a.Name())

	a, err = NewAdapter("dunst")
	require.NoError(t, err)
	assert.Equal(t, "dunst", a.Name())

	_, err = NewAdapter("mako")
	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "mako: unknown or unavailable adapter", err.Error())
}

package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/overlay/internal/model"
)

var now = time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)

func testNotifications() []model.Notification {
	return []model.Notification{
		{
			ID:            "01ABC",
			Source:        "Firefox",
			Title:         "Download Complete",
			Message:       "myfile.zip has\nfinished downloading",
			Type:          model.TypeSuccess,
			Duration:      2 * time.Second,
			Timestamp:     now.Add(-5*time.Minute - 2*time.Second),
			DismissedAt:   now.Add(-5 * time.Minute),
			DismissReason: "expired",
		},
		{
			ID:        "01DEF",
			Source:    "Slack",
			Message:   "Hello from John",
			Type:      model.TypeError,
			Timestamp: now.Add(-2 * time.Hour),
		},
	}
}

func testOptions() FormatterOptions {
	opts := DefaultFormatterOptions()
	opts.Now = now
	return opts
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats() {
		got, err := ParseFormat(strings.ToUpper(string(f)))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestNewFormatter(t *testing.T) {
	for _, f := range Formats() {
		formatter, err := NewFormatter(f, testOptions())
		require.NoError(t, err, f)
		assert.NotNil(t, formatter)
	}

	_, err := NewFormatter("xml", testOptions())
	assert.Error(t, err)

	opts := testOptions()
	opts.Template = "{{ .Broken"
	_, err = NewFormatter(FormatPlain, opts)
	assert.Error(t, err)
}

func TestPlainFormatter(t *testing.T) {
	f, err := NewPlainFormatter(testOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, testNotifications()))

	expected := "[1] + <Firefox> Download Complete (5 minutes ago) [expired]\n" +
		"    myfile.zip has finished downloading\n" +
		"[2] ! <Slack> Hello from John (2 hours ago)\n"
	assert.Equal(t, expected, buf.String())
}

func TestPlainFormatter_Template(t *testing.T) {
	opts := testOptions()
	opts.Template = "{{ .Index }}:{{ typeIcon .Notification.Type }}:{{ truncate .Notification.Message 8 }}:{{ .RelativeTime }}\n"
	f, err := NewPlainFormatter(opts)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, testNotifications()[1:]))
	assert.Equal(t, "1:!:Hello...:2 hours ago\n", buf.String())
}

func TestDmenuFormatter(t *testing.T) {
	f, err := NewDmenuFormatter(testOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, testNotifications()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1 | 5m | Firefox | Download Complete: myfile.zip has finished downloading", lines[0])
	assert.Equal(t, "2 | 2h | Slack | Hello from John", lines[1])

	t.Run("minimal", func(t *testing.T) {
		opts := FormatterOptions{Separator: "\t", MessageMaxLen: 10, Now: now}
		f, err := NewDmenuFormatter(opts)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, f.Format(&buf, testNotifications()[:1]))
		assert.Equal(t, "Download Complete: myfile....\n", buf.String())
	})
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter().Format(&buf, testNotifications()))

	var decoded []model.Notification
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "01ABC", decoded[0].ID)
	assert.Equal(t, "expired", decoded[0].DismissReason)
	assert.NotContains(t, buf.String(), "dismissed_at\": \"0001", "zero times are omitted")

	buf.Reset()
	require.NoError(t, NewJSONFormatter().Format(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	n := testNotifications()[1]
	require.NoError(t, NewJSONFormatter().FormatSingle(&buf, &n))
	assert.Contains(t, buf.String(), `"id": "01DEF"`)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLFormatter().Format(&buf, testNotifications()))

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "01ABC", decoded[0]["id"])
	assert.Equal(t, "success", decoded[0]["type"])
	assert.Equal(t, "Slack", decoded[1]["source"])
	_, hasReason := decoded[1]["dismiss_reason"]
	assert.False(t, hasReason)
}

func TestIDsFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewIDsFormatter().Format(&buf, testNotifications()))
	assert.Equal(t, "01ABC\n01DEF\n", buf.String())
}

func TestFormatField(t *testing.T) {
	n := testNotifications()[0]
	tests := map[string]string{
		"id":      "01ABC",
		"app":     "Firefox",
		"summary": "Download Complete",
		"body":    n.Message,
		"type":    "success",
		"reason":  "expired",
		"full":    "Download Complete\n" + n.Message,
		"unknown": "Download Complete",
	}
	for field, expected := range tests {
		assert.Equal(t, expected, FormatField(&n, field), field)
	}
}

func TestCompactTime(t *testing.T) {
	tests := []struct {
		ago      time.Duration
		expected string
	}{
		{30 * time.Second, "now"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{2 * 24 * time.Hour, "2d"},
		{15 * 24 * time.Hour, "2w"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, compactTime(now.Add(-tt.ago), now))
	}
	assert.Equal(t, "unknown", compactTime(time.Time{}, now))
}

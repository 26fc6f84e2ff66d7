package input

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlay/internal/model"
)

func stdinAdapter(input string) *StdinAdapter {
	a := NewStdinAdapterWithReader(strings.NewReader(input))
	a.now = func() time.Time { return importNow }
	return a
}

func TestStdinAdapter_JSONArray(t *testing.T) {
	input := `[
		{"source": "build", "title": "Deploy", "message": "done", "type": "success", "duration": "2s"},
		{"message": "sticky", "duration": "0", "dismissible": false, "timestamp": 1780000000},
		{"source": "empty"},
		{"message": "bad type", "type": "fancy"},
		{"message": "bad duration", "duration": "soon"}
	]`

	notifications, err := stdinAdapter(input).Import(context.Background())
	require.NoError(t, err)
	require.Len(t, notifications, 2)

	n := notifications[0]
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "build", n.Source)
	assert.Equal(t, model.TypeSuccess, n.Type)
	assert.Equal(t, 2*time.Second, n.Duration)
	assert.Equal(t, importNow, n.Timestamp)
	assert.True(t, n.Dismissible)

	sticky := notifications[1]
	assert.Equal(t, model.TypeDefault, sticky.Type)
	assert.Equal(t, model.Infinite, sticky.Duration)
	assert.False(t, sticky.Dismissible)
	assert.Equal(t, time.Unix(1780000000, 0), sticky.Timestamp)
}

func TestStdinAdapter_JSONLines(t *testing.T) {
	input := `{"title": "one", "message": "a"}
not json
{"title": "two", "message": "b", "type": "warning"}
`
	notifications, err := stdinAdapter(input).Import(context.Background())
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, "one", notifications[0].Title)
	assert.Equal(t, model.TypeWarning, notifications[1].Type)
}

func TestStdinAdapter_DunstFormat(t *testing.T) {
	notifications, err := stdinAdapter(dunstFixture).Import(context.Background())
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, "firefox", notifications[0].Source)
}

func TestStdinAdapter_Empty(t *testing.T) {
	notifications, err := stdinAdapter("   \n").Import(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notifications)
}

func TestStdinAdapter_InvalidArray(t *testing.T) {
	_, err := stdinAdapter(`[{"message": }]`).Import(context.Background())
	assert.Error(t, err)
}

func TestStdinAdapter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := stdinAdapter(`{"message": "x"}`).Import(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

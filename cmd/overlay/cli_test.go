package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlay/internal/model"
	"github.com/jmylchreest/overlay/internal/store"
)

func TestNotificationFromFlags(t *testing.T) {
	t.Cleanup(func() {
		notifyOpts.typ = string(model.TypeDefault)
		notifyOpts.duration = ""
		notifyOpts.notDismissible = false
	})

	notifyOpts.typ = "success"
	notifyOpts.duration = "1500ms"
	n, err := notificationFromFlags("done")
	require.NoError(t, err)
	assert.Equal(t, model.TypeSuccess, n.Type)
	assert.Equal(t, 1500*time.Millisecond, n.Duration)
	assert.True(t, n.Dismissible)

	notifyOpts.duration = "0"
	notifyOpts.notDismissible = true
	n, err = notificationFromFlags("sticky")
	require.NoError(t, err)
	assert.Equal(t, model.Infinite, n.Duration)
	assert.False(t, n.Dismissible)

	notifyOpts.duration = "-1s"
	_, err = notificationFromFlags("bad")
	assert.Error(t, err)

	notifyOpts.duration = ""
	notifyOpts.typ = "fancy"
	_, err = notificationFromFlags("bad")
	assert.Error(t, err)
}

func TestPreviewPrune(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []model.Notification{
		{ID: "01A", Message: "old", DismissedAt: now.Add(-72 * time.Hour)},
		{ID: "01B", Message: "mid", DismissedAt: now.Add(-2 * time.Hour)},
		{ID: "01C", Message: "new", DismissedAt: now.Add(-time.Minute)},
	}

	removed, err := previewPrune(entries, 0, 24*time.Hour, now)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "01A", removed[0].ID)

	removed, err = previewPrune(entries, 1, 0, now)
	require.NoError(t, err)
	assert.Len(t, removed, 2)
}

func TestLookupEntry(t *testing.T) {
	all := []model.Notification{{ID: "01ABC"}, {ID: "01ABD"}, {ID: "01XYZ"}}
	listed := []model.Notification{all[2], all[0]}

	n, ok := lookupEntry(all, listed, "1")
	require.True(t, ok)
	assert.Equal(t, "01XYZ", n.ID)

	n, ok = lookupEntry(all, listed, "01abd")
	require.True(t, ok)
	assert.Equal(t, "01ABD", n.ID)

	_, ok = lookupEntry(all, listed, "01AB")
	assert.False(t, ok, "ambiguous prefix")
}

func TestRecordImported(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := store.NewHistory(nil)
	defer func() { _ = h.Close() }()

	count, err := recordImported(h, []model.Notification{
		{ID: "01A", Message: "dated", Timestamp: now.Add(-time.Hour)},
		{ID: "01B", Message: "undated"},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	dated, ok := h.Get("01A")
	require.True(t, ok)
	assert.Equal(t, now.Add(-time.Hour), dated.DismissedAt)
	assert.Equal(t, importedReason, dated.DismissReason)

	undated, ok := h.Get("01B")
	require.True(t, ok)
	assert.Equal(t, now, undated.DismissedAt)

	_, err = recordImported(h, []model.Notification{{Message: "no id"}}, now)
	assert.ErrorIs(t, err, model.ErrEmptyID)
}

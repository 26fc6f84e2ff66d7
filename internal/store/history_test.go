package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlay/internal/model"
)

func TestHistory_Record(t *testing.T) {
	h := NewHistory(nil)
	defer func() { _ = h.Close() }()

	require.NoError(t, h.Record(entry("a", epoch)))
	require.NoError(t, h.Record(entry("b", epoch)))
	assert.Equal(t, 2, h.Count())

	updated := entry("a", epoch.Add(time.Minute))
	updated.DismissReason = "dismissed"
	require.NoError(t, h.Record(updated))
	assert.Equal(t, 2, h.Count(), "same id replaces")

	got, ok := h.Get("a")
	require.True(t, ok)
	assert.Equal(t, "dismissed", got.DismissReason)

	all := h.All()
	assert.Equal(t, "a", all[0].ID, "order is preserved")

	assert.ErrorIs(t, h.Record(model.Notification{Message: "no id"}), model.ErrEmptyID)
}

func TestHistory_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	h, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, h.Record(entry("a", epoch)))
	require.NoError(t, h.Record(entry("b", epoch)))
	again := entry("a", epoch)
	again.Title = "rewritten"
	require.NoError(t, h.Record(again))
	require.NoError(t, h.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	assert.Equal(t, 2, reopened.Count())
	got, _ := reopened.Get("a")
	assert.Equal(t, "rewritten", got.Title)
}

func TestHistory_Prune(t *testing.T) {
	tests := []struct {
		name      string
		keep      int
		olderThan time.Duration
		removed   int
		remaining []string
	}{
		{"no limits", 0, 0, 0, []string{"a", "b", "c", "d"}},
		{"keep newest two", 2, 0, 2, []string{"c", "d"}},
		{"older than 90 minutes", 0, 90 * time.Minute, 2, []string{"c", "d"}},
		{"both", 1, 150 * time.Minute, 3, []string{"d"}},
		{"keep more than present", 10, 0, 0, []string{"a", "b", "c", "d"}},
	}

	now := epoch.Add(4 * time.Hour)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory(nil)
			for i, id := range []string{"a", "b", "c", "d"} {
				require.NoError(t, h.Record(entry(id, epoch.Add(time.Duration(i+1)*time.Hour))))
			}

			removed, err := h.Prune(tt.keep, tt.olderThan, now)
			require.NoError(t, err)
			assert.Equal(t, tt.removed, removed)

			var ids []string
			for _, n := range h.All() {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, tt.remaining, ids)
		})
	}
}

func TestHistory_PruneRewritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	h, err := Open(path)
	require.NoError(t, err)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Record(entry(id, epoch.Add(time.Duration(i)*time.Minute))))
	}
	removed, err := h.Prune(1, 0, epoch)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	require.NoError(t, h.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	require.Equal(t, 1, reopened.Count())
	_, ok := reopened.Get("c")
	assert.True(t, ok)
}

func TestHistory_DeleteAndClear(t *testing.T) {
	h := NewHistory(nil)
	require.NoError(t, h.Record(entry("a", epoch)))
	require.NoError(t, h.Record(entry("b", epoch)))

	require.NoError(t, h.Delete("a"))
	require.NoError(t, h.Delete("missing"))
	assert.Equal(t, 1, h.Count())
	_, ok := h.Get("b")
	assert.True(t, ok, "index rebuilt after delete")

	require.NoError(t, h.Clear())
	assert.Equal(t, 0, h.Count())
}

func TestHistory_Subscribe(t *testing.T) {
	h := NewHistory(nil)
	events, err := h.Subscribe()
	require.NoError(t, err)

	require.NoError(t, h.Record(entry("a", epoch)))
	ev := <-events
	assert.Equal(t, ChangeRecord, ev.Type)
	assert.Equal(t, []string{"a"}, ev.IDs)

	require.NoError(t, h.Clear())
	ev = <-events
	assert.Equal(t, ChangeClear, ev.Type)
	assert.Equal(t, "clear", ev.Type.String())

	require.NoError(t, h.Close())
	_, open := <-events
	assert.False(t, open)

	assert.ErrorIs(t, h.Record(entry("b", epoch)), ErrHistoryClosed)
	_, err = h.Prune(1, 0, epoch)
	assert.ErrorIs(t, err, ErrHistoryClosed)
	_, err = h.Subscribe()
	assert.ErrorIs(t, err, ErrHistoryClosed)
}

func TestFileWatcher_Rehydrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	writer, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = writer.Close() }()

	reader, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	events, err := reader.Subscribe()
	require.NoError(t, err)

	fw := NewFileWatcher(reader, path, nil)
	require.NoError(t, fw.Start())
	defer func() { _ = fw.Stop() }()

	require.NoError(t, writer.Record(entry("from-daemon", epoch)))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == ChangeHydrate {
				assert.Equal(t, []string{"from-daemon"}, ev.IDs)
				return
			}
		case <-deadline:
			t.Fatal("history was not reloaded")
		}
	}
}

func TestOpen_BadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"overlay_schema_version":7}`+"\n"), 0o600))
	_, err := Open(path)
	assert.Error(t, err)
}

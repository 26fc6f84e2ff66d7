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

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func entry(id string, dismissedAt time.Time) model.Notification {
	return model.Notification{
		ID:            id,
		Source:        "test-app",
		Title:         "Title " + id,
		Message:       "Body",
		Type:          model.TypeInfo,
		Duration:      4 * time.Second,
		Timestamp:     dismissedAt.Add(-4 * time.Second),
		Dismissible:   true,
		DismissedAt:   dismissedAt,
		DismissReason: "expired",
	}
}

func TestNewJSONLPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.jsonl")

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "overlay_schema_version")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, path, p.Path())
}

func TestJSONLPersistence_AppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	require.NoError(t, p.Append(entry("a", epoch)))
	require.NoError(t, p.Append(entry("b", epoch.Add(time.Second))))

	got, err := p.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "expired", got[0].DismissReason)
	assert.True(t, got[0].DismissedAt.Equal(epoch))
	assert.Equal(t, 4*time.Second, got[0].Duration)

	require.NoError(t, p.Append(entry("c", epoch)), "append after load")
	require.NoError(t, p.Close())

	reopened, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	got, err = reopened.Load()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestJSONLPersistence_RewriteAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	for _, id := range []string{"old1", "old2", "old3"} {
		require.NoError(t, p.Append(entry(id, epoch)))
	}

	require.NoError(t, p.Rewrite([]model.Notification{entry("new1", epoch)}))
	got, err := p.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new1", got[0].ID)

	_, err = os.Stat(path + ".bak")
	assert.True(t, os.IsNotExist(err), "backup removed after rewrite")

	require.NoError(t, p.Append(entry("new2", epoch)))
	got, _ = p.Load()
	assert.Len(t, got, 2)

	require.NoError(t, p.Clear())
	got, err = p.Load()
	require.NoError(t, err)
	assert.Empty(t, got)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "overlay_schema_version")
}

func TestJSONLPersistence_Closed(t *testing.T) {
	p, err := NewJSONLPersistence(filepath.Join(t.TempDir(), "history.jsonl"))
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.Load()
	assert.ErrorIs(t, err, ErrPersistenceClosed)
	assert.ErrorIs(t, p.Append(entry("x", epoch)), ErrPersistenceClosed)
	assert.ErrorIs(t, p.Rewrite(nil), ErrPersistenceClosed)
	assert.ErrorIs(t, p.Clear(), ErrPersistenceClosed)
}

func TestJSONLPersistence_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	content := `{"overlay_schema_version":1,"created_at":1703577600}
{"id":"valid1","message":"one","type":"info"}
{invalid json}
{"message":"no id"}
{"id":"valid2","message":"two","type":"error"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	got, err := p.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.TypeError, got[1].Type)
}

func TestJSONLPersistence_SchemaVersionCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	content := `{"overlay_schema_version":999,"created_at":1703577600}
{"id":"test1","message":"m"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	_, err = p.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

func TestRecoverFromCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	content := `{"overlay_schema_version":1,"created_at":1703577600}
{"id":"valid1","message":"one"}
corrupt line that will break things
{"id":"valid2","message":"two"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	n, err := RecoverFromCorruption(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p, err := NewJSONLPersistence(path)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	got, err := p.Load()
	require.NoError(t, err)
	assert.Len(t, got, 2)

	matches, _ := filepath.Glob(path + ".corrupted.*")
	assert.Len(t, matches, 1)
}

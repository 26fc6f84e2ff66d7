package layout

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedViewport struct{ w, h int }

func (v *fixedViewport) Size() (int, int) { return v.w, v.h }

func TestWhen_Matches(t *testing.T) {
	tests := []struct {
		name string
		when When
		w, h int
		want bool
	}{
		{"empty rule", When{}, 10, 10, true},
		{"min width met", When{MinWidth: 100}, 100, 10, true},
		{"min width not met", When{MinWidth: 100}, 99, 10, false},
		{"max width exceeded", When{MaxWidth: 80}, 81, 10, false},
		{"min height not met", When{MinHeight: 20}, 200, 19, false},
		{"max height met", When{MaxHeight: 20}, 200, 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.when.Matches(tt.w, tt.h))
		})
	}
}

func TestParseDefinitions(t *testing.T) {
	data := []byte(`
groups:
  - id: modals
    exclusive: true
elements:
  - id: help
    title: Help
    content: press ? to close
    z_index: 10
    group: modals
    key: "?"
    animation:
      enter: fade-in
      exit: fade-out
      duration: 150ms
  - id: sidebar
    position: fixed
    when:
      min_width: 100
`)

	defs, err := ParseDefinitions(data)
	require.NoError(t, err)
	require.Len(t, defs.Groups, 1)
	require.Len(t, defs.Elements, 2)

	help := defs.Elements[0]
	assert.Equal(t, "modals", help.Group)
	assert.Equal(t, 10, help.ZIndex)
	require.NotNil(t, help.Animation)
	assert.Equal(t, 150*time.Millisecond, help.Animation.Duration)

	require.NotNil(t, defs.Elements[1].When)
	assert.Equal(t, 100, defs.Elements[1].When.MinWidth)
}

func TestDefinitions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"empty element id", "elements:\n  - content: x\n", ErrEmptyElementID},
		{"empty group id", "groups:\n  - exclusive: true\n", ErrEmptyGroupID},
		{"duplicate element", "elements:\n  - id: a\n  - id: a\n", ErrDuplicateID},
		{"duplicate group", "groups:\n  - id: g\n  - id: g\n", ErrDuplicateID},
		{"bad position", "elements:\n  - id: a\n    position: floating\n", ErrInvalidPosition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinitions([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("unknown group", func(t *testing.T) {
		_, err := ParseDefinitions([]byte("elements:\n  - id: a\n    group: nope\n"))
		assert.ErrorContains(t, err, "unknown group")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseDefinitions([]byte("elements: ["))
		assert.Error(t, err)
	})
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("elements:\n  - id: a\n    visible: true\n"), 0o600))

	defs, err := LoadDefinitions(path)
	require.NoError(t, err)
	assert.Len(t, defs.Elements, 1)

	_, err = LoadDefinitions(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDefinitions_Apply(t *testing.T) {
	defs, ok := GetEmbeddedLayout("default")
	require.True(t, ok)

	vp := &fixedViewport{w: 80, h: 24}
	r := NewRegistry(nil)
	defs.Apply(r, vp)

	assert.Equal(t, []string{"status"}, visibleIDs(r), "narrow viewport hides the sidebar")

	status, _ := r.Get("status")
	assert.Equal(t, PositionSticky, status.Position)
	content, ok := status.Content.(Content)
	require.True(t, ok)
	assert.NotEmpty(t, content.Body)

	help, _ := r.Get("help")
	assert.Equal(t, "modals", help.Group)
	require.NotNil(t, help.Animation)

	g, ok := r.Group("modals")
	require.True(t, ok)
	assert.True(t, g.Exclusive)
	assert.ElementsMatch(t, []string{"help", "about"}, g.Elements)

	vp.w = 120
	r.EvaluateConditionals()
	assert.ElementsMatch(t, []string{"status", "sidebar"}, visibleIDs(r))

	r.Show("help")
	r.Show("about")
	help, _ = r.Get("help")
	assert.False(t, help.Visible)
}

func TestEmbeddedLayouts(t *testing.T) {
	assert.Contains(t, ListEmbeddedLayouts(), "default")

	_, ok := GetEmbeddedLayout("does-not-exist")
	assert.False(t, ok)
}

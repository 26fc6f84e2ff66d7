package layout

import (
	"embed"
	"strings"
)

//go:embed layouts/*.yaml
var EmbeddedLayouts embed.FS

// GetEmbeddedLayout returns an embedded layout by name.
// The name should not include the .yaml extension.
func GetEmbeddedLayout(name string) (*Definitions, bool) {
	data, err := EmbeddedLayouts.ReadFile("layouts/" + name + ".yaml")
	if err != nil {
		return nil, false
	}

	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, false
	}
	return defs, true
}

// ListEmbeddedLayouts returns the names of all embedded layouts.
func ListEmbeddedLayouts() []string {
	entries, err := EmbeddedLayouts.ReadDir("layouts")
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".yaml") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
		}
	}
	return names
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSort(t *testing.T) {
	tests := []struct {
		name     string
		opts     SortOptions
		expected []string
	}{
		{"default newest first", DefaultSortOptions(), []string{"02C", "01A", "01B"}},
		{"timestamp ascending", SortOptions{Field: SortByTimestamp, Order: SortAsc}, []string{"01B", "01A", "02C"}},
		{"source ascending is stable", SortOptions{Field: SortBySource, Order: SortAsc}, []string{"01B", "01A", "02C"}},
		{"type most severe first", SortOptions{Field: SortByType, Order: SortDesc}, []string{"01B", "01A", "02C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := sample()
			Sort(ns, tt.opts)
			assert.Equal(t, tt.expected, ids(ns))
		})
	}

	Sort(nil, DefaultSortOptions())
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, SortBySource, ParseSortField("app"))
	assert.Equal(t, SortByType, ParseSortField("Type"))
	assert.Equal(t, SortByTimestamp, ParseSortField("whatever"))

	assert.Equal(t, SortAsc, ParseSortOrder("ascending"))
	assert.Equal(t, SortDesc, ParseSortOrder(""))
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	ns := sample()

	n, ok := LookupByID(ns, "01B")
	assert.True(t, ok)
	assert.Equal(t, "build", n.Source)
	_, ok = LookupByID(ns, "zzz")
	assert.False(t, ok)

	n, ok = LookupByIndex(ns, 3)
	assert.True(t, ok)
	assert.Equal(t, "02C", n.ID)
	_, ok = LookupByIndex(ns, 0)
	assert.False(t, ok)
	_, ok = LookupByIndex(ns, 4)
	assert.False(t, ok)
}

func TestLookupByPrefix(t *testing.T) {
	ns := sample()

	n, ok := LookupByPrefix(ns, "02")
	assert.True(t, ok)
	assert.Equal(t, "02C", n.ID)

	n, ok = LookupByPrefix(ns, "01a")
	assert.True(t, ok, "case-insensitive")
	assert.Equal(t, "01A", n.ID)

	_, ok = LookupByPrefix(ns, "01")
	assert.False(t, ok, "ambiguous")
	_, ok = LookupByPrefix(ns, " ")
	assert.False(t, ok)
}

func TestSearch(t *testing.T) {
	assert.Equal(t, []string{"01A"}, ids(Search(sample(), "REPORT")))
	assert.Equal(t, []string{"02C"}, ids(Search(sample(), "meeting")))
	assert.Len(t, Search(sample(), ""), 3)
	assert.Empty(t, Search(sample(), "absent"))
}

func TestUniqueSources(t *testing.T) {
	assert.Equal(t, []string{"build", "firefox"}, UniqueSources(sample()))
	assert.Nil(t, UniqueSources(nil))
}

package core

import (
	"slices"
	"strings"
	"time"

	"github.com/jmylchreest/overlay/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortBySource    SortField = "source"
	SortByType      SortField = "type"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions sorts newest first.
func DefaultSortOptions() SortOptions {
	return SortOptions{Field: SortByTimestamp, Order: SortDesc}
}

// typeRank orders types from least to most severe.
var typeRank = map[model.Type]int{
	model.TypeDefault: 0,
	model.TypeLoading: 1,
	model.TypeInfo:    2,
	model.TypeSuccess: 3,
	model.TypeWarning: 4,
	model.TypeError:   5,
}

// Sort sorts notifications in place. Equal keys keep their input order.
func Sort(notifications []model.Notification, opts SortOptions) {
	slices.SortStableFunc(notifications, func(a, b model.Notification) int {
		var c int
		switch opts.Field {
		case SortBySource:
			c = strings.Compare(strings.ToLower(a.Source), strings.ToLower(b.Source))
		case SortByType:
			c = typeRank[a.Type] - typeRank[b.Type]
		default:
			c = compareTime(entryTime(a), entryTime(b))
		}
		if opts.Order == SortDesc {
			return -c
		}
		return c
	})
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// ParseSortField parses a sort field. Unknown values sort by timestamp.
func ParseSortField(s string) SortField {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source", "app", "s":
		return SortBySource
	case "type", "severity":
		return SortByType
	default:
		return SortByTimestamp
	}
}

// ParseSortOrder parses a sort order. Unknown values sort descending.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a":
		return SortAsc
	default:
		return SortDesc
	}
}

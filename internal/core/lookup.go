package core

import (
	"slices"
	"strings"

	"github.com/jmylchreest/overlay/internal/model"
)

// LookupByID finds an entry by exact id.
func LookupByID(notifications []model.Notification, id string) (model.Notification, bool) {
	for _, n := range notifications {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// LookupByPrefix finds the single entry whose id starts with prefix
// (case-insensitive). Ambiguous or empty prefixes match nothing.
func LookupByPrefix(notifications []model.Notification, prefix string) (model.Notification, bool) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return model.Notification{}, false
	}

	var found model.Notification
	matches := 0
	for _, n := range notifications {
		if strings.HasPrefix(strings.ToUpper(n.ID), prefix) {
			found = n
			matches++
		}
	}
	return found, matches == 1
}

// LookupByIndex finds an entry by 1-based position.
func LookupByIndex(notifications []model.Notification, index int) (model.Notification, bool) {
	if index < 1 || index > len(notifications) {
		return model.Notification{}, false
	}
	return notifications[index-1], true
}

// Search returns entries whose title or message contains term
// (case-insensitive).
func Search(notifications []model.Notification, term string) []model.Notification {
	if term == "" {
		return notifications
	}
	term = strings.ToLower(term)

	var result []model.Notification
	for _, n := range notifications {
		if strings.Contains(strings.ToLower(n.Title), term) ||
			strings.Contains(strings.ToLower(n.Message), term) {
			result = append(result, n)
		}
	}
	return result
}

// UniqueSources returns the distinct sources, sorted case-insensitively.
func UniqueSources(notifications []model.Notification) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, n := range notifications {
		if n.Source != "" && !seen[n.Source] {
			seen[n.Source] = true
			sources = append(sources, n.Source)
		}
	}
	slices.SortFunc(sources, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return sources
}

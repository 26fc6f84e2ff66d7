// Package store keeps the history of notifications that have left the
// display.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/overlay/internal/model"
)

// ErrHistoryClosed is returned when using a closed History.
var ErrHistoryClosed = errors.New("history is closed")

// ChangeType indicates the type of history change.
type ChangeType int

const (
	// ChangeRecord indicates an entry was recorded.
	ChangeRecord ChangeType = iota
	// ChangeDelete indicates an entry was deleted.
	ChangeDelete
	// ChangePrune indicates entries were pruned.
	ChangePrune
	// ChangeClear indicates the history was cleared.
	ChangeClear
	// ChangeHydrate indicates entries were reloaded from disk.
	ChangeHydrate
)

// String returns the string representation of ChangeType.
func (t ChangeType) String() string {
	switch t {
	case ChangeRecord:
		return "record"
	case ChangeDelete:
		return "delete"
	case ChangePrune:
		return "prune"
	case ChangeClear:
		return "clear"
	case ChangeHydrate:
		return "hydrate"
	default:
		return "unknown"
	}
}

// ChangeEvent signals history content changes. IDs lists entries that were
// added or removed.
type ChangeEvent struct {
	Type ChangeType
	IDs  []string
}

// History is an ordered, persisted list of dismissed notifications, oldest
// first. Recording an id that already exists replaces that entry.
type History struct {
	mu      sync.RWMutex
	entries []model.Notification
	index   map[string]int

	persistence Persistence
	subscribers []chan ChangeEvent
	closed      bool
}

// NewHistory creates a History. A nil persistence keeps entries in memory.
func NewHistory(p Persistence) *History {
	return &History{
		entries:     make([]model.Notification, 0),
		index:       make(map[string]int),
		persistence: p,
	}
}

// Open opens the JSONL history file at path and loads it.
func Open(path string) (*History, error) {
	p, err := NewJSONLPersistence(path)
	if err != nil {
		return nil, err
	}
	h := NewHistory(p)
	if err := h.Hydrate(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to load history %s: %w", path, err)
	}
	return h, nil
}

// Record stores a notification.
func (h *History) Record(n model.Notification) error {
	if n.ID == "" {
		return model.ErrEmptyID
	}
	n.OnDismiss = nil

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHistoryClosed
	}

	if idx, exists := h.index[n.ID]; exists {
		h.entries[idx] = n
		if h.persistence != nil {
			if err := h.persistence.Rewrite(h.entries); err != nil {
				return fmt.Errorf("failed to persist %s: %w", n.ID, err)
			}
		}
	} else {
		h.index[n.ID] = len(h.entries)
		h.entries = append(h.entries, n)
		if h.persistence != nil {
			if err := h.persistence.Append(n); err != nil {
				return fmt.Errorf("failed to persist %s: %w", n.ID, err)
			}
		}
	}

	h.notifyLocked(ChangeEvent{Type: ChangeRecord, IDs: []string{n.ID}})
	return nil
}

// All returns a copy of every entry, oldest first.
func (h *History) All() []model.Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.entries)
}

// Get returns the entry with the given id.
func (h *History) Get(id string) (model.Notification, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	idx, ok := h.index[id]
	if !ok {
		return model.Notification{}, false
	}
	return h.entries[idx], true
}

// Count returns the number of entries.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Delete removes one entry. Unknown ids are ignored.
func (h *History) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHistoryClosed
	}
	if _, ok := h.index[id]; !ok {
		return nil
	}

	kept := slices.DeleteFunc(slices.Clone(h.entries), func(n model.Notification) bool { return n.ID == id })
	if err := h.replaceLocked(kept); err != nil {
		return err
	}
	h.notifyLocked(ChangeEvent{Type: ChangeDelete, IDs: []string{id}})
	return nil
}

// Prune drops entries dismissed before now-olderThan (when olderThan > 0)
// and then all but the newest keep entries (when keep > 0). It returns the
// number of entries removed.
func (h *History) Prune(keep int, olderThan time.Duration, now time.Time) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrHistoryClosed
	}

	kept := slices.Clone(h.entries)
	if olderThan > 0 {
		cutoff := now.Add(-olderThan)
		kept = slices.DeleteFunc(kept, func(n model.Notification) bool {
			return entryTime(n).Before(cutoff)
		})
	}
	if keep > 0 && len(kept) > keep {
		kept = kept[len(kept)-keep:]
	}

	removed := len(h.entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	survivors := make(map[string]bool, len(kept))
	for _, n := range kept {
		survivors[n.ID] = true
	}
	ids := make([]string, 0, removed)
	for _, n := range h.entries {
		if !survivors[n.ID] {
			ids = append(ids, n.ID)
		}
	}

	if err := h.replaceLocked(kept); err != nil {
		return 0, err
	}
	h.notifyLocked(ChangeEvent{Type: ChangePrune, IDs: ids})
	return removed, nil
}

// Clear removes every entry.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHistoryClosed
	}

	ids := make([]string, len(h.entries))
	for i, n := range h.entries {
		ids[i] = n.ID
	}
	if h.persistence != nil {
		if err := h.persistence.Clear(); err != nil {
			return err
		}
	}
	h.entries = make([]model.Notification, 0)
	h.index = make(map[string]int)

	h.notifyLocked(ChangeEvent{Type: ChangeClear, IDs: ids})
	return nil
}

// Hydrate replaces the in-memory entries with the persisted ones. The event
// lists entries that were not present before.
func (h *History) Hydrate() error {
	if h.persistence == nil {
		return nil
	}
	loaded, err := h.persistence.Load()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHistoryClosed
	}

	var added []string
	entries := make([]model.Notification, 0, len(loaded))
	index := make(map[string]int, len(loaded))
	for _, n := range loaded {
		if idx, dup := index[n.ID]; dup {
			entries[idx] = n
			continue
		}
		if _, known := h.index[n.ID]; !known {
			added = append(added, n.ID)
		}
		index[n.ID] = len(entries)
		entries = append(entries, n)
	}
	h.entries = entries
	h.index = index

	if len(added) > 0 {
		h.notifyLocked(ChangeEvent{Type: ChangeHydrate, IDs: added})
	}
	return nil
}

// Subscribe returns a channel of change events. Events are dropped when the
// channel is full.
func (h *History) Subscribe() (<-chan ChangeEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHistoryClosed
	}
	ch := make(chan ChangeEvent, 16)
	h.subscribers = append(h.subscribers, ch)
	return ch, nil
}

// Unsubscribe removes and closes a subscription.
func (h *History) Unsubscribe(ch <-chan ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close closes every subscription and the persistence.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil

	if h.persistence != nil {
		return h.persistence.Close()
	}
	return nil
}

func (h *History) replaceLocked(kept []model.Notification) error {
	if h.persistence != nil {
		if err := h.persistence.Rewrite(kept); err != nil {
			return err
		}
	}
	h.entries = kept
	h.index = make(map[string]int, len(kept))
	for i, n := range kept {
		h.index[n.ID] = i
	}
	return nil
}

func (h *History) notifyLocked(event ChangeEvent) {
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// entryTime is when an entry left the display, or when it arrived for
// entries that were never stamped.
func entryTime(n model.Notification) time.Time {
	if !n.DismissedAt.IsZero() {
		return n.DismissedAt
	}
	return n.Timestamp
}

// Package input reads notifications from other sources: dunst's history and
// JSON on standard input.
package input

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/jmylchreest/overlay/internal/model"
)

// InputAdapter fetches notifications from a source.
type InputAdapter interface {
	// Name returns the adapter identifier (e.g., "dunst", "stdin").
	Name() string

	// Import fetches notifications from the source. Every returned
	// notification has a fresh id.
	Import(ctx context.Context) ([]model.Notification, error)
}

// Sources lists the adapter names accepted by NewAdapter.
func Sources() []string {
	return []string{"dunst", "stdin"}
}

// DetectDaemon returns the name of the first available notification daemon.
// Returns empty string if none found.
func DetectDaemon() string {
	if _, err := exec.LookPath("dunstctl"); err == nil {
		return "dunst"
	}
	return ""
}

// NewAdapter creates an InputAdapter for the specified source.
// If source is empty, attempts to auto-detect.
func NewAdapter(source string) (InputAdapter, error) {
	if source == "" {
		source = DetectDaemon()
	}

	switch source {
	case "dunst":
		return NewDunstAdapter(), nil
	case "stdin":
		return NewStdinAdapter(), nil
	default:
		return nil, &AdapterError{
			Source:  source,
			Message: "unknown or unavailable adapter",
		}
	}
}

// AdapterError represents an adapter-related error.
type AdapterError struct {
	Source  string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Source + ": " + e.Message
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// newEntry assigns an id and fills the defaults shared by every adapter.
// The id is ordered by the entry's own timestamp when it has one.
func newEntry(n model.Notification, now time.Time) (model.Notification, error) {
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	id, err := model.NewID(n.Timestamp)
	if err != nil {
		return model.Notification{}, err
	}
	n.ID = id
	n.Source = sanitizeString(n.Source)
	n.Title = sanitizeString(n.Title)
	n.Message = sanitizeString(n.Message)
	if n.Type == "" {
		n.Type = model.TypeDefault
	}
	return n, nil
}

// sanitizeString removes control characters and trims whitespace.
func sanitizeString(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\t' {
			result.WriteRune(' ')
		} else {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

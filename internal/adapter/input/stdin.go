package input

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/jmylchreest/overlay/internal/model"
)

// StdinAdapter reads notifications from standard input.
type StdinAdapter struct {
	reader io.Reader
	now    func() time.Time
}

// NewStdinAdapter creates a new StdinAdapter reading from os.Stdin.
func NewStdinAdapter() *StdinAdapter {
	return NewStdinAdapterWithReader(os.Stdin)
}

// NewStdinAdapterWithReader creates a new StdinAdapter with a custom reader.
func NewStdinAdapterWithReader(r io.Reader) *StdinAdapter {
	return &StdinAdapter{reader: r, now: time.Now}
}

// Name returns the adapter identifier.
func (a *StdinAdapter) Name() string {
	return "stdin"
}

// Import reads notifications from the reader. Three formats are accepted:
// dunstctl history output, a JSON array of entries, or one JSON entry per
// line. Malformed entries are skipped.
func (a *StdinAdapter) Import(ctx context.Context) ([]model.Notification, error) {
	scanner := bufio.NewScanner(a.reader)
	const maxSize = 10 * 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxSize)

	var data []byte
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data = append(data, scanner.Bytes()...)
		data = append(data, '\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, &AdapterError{
			Source:  "stdin",
			Message: "failed to read stdin",
			Err:     err,
		}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	now := a.now()
	if data[0] == '{' {
		if notifications, err := parseDunstHistory(data, now, nil); err == nil && len(notifications) > 0 {
			return notifications, nil
		}
	}
	if data[0] == '[' {
		return parseJSONArray(data, now)
	}
	return parseJSONLines(data, now), nil
}

// stdinEntry is the JSON shape accepted on stdin.
type stdinEntry struct {
	Source      string `json:"source"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	Duration    string `json:"duration,omitempty"` // "4s"; "0" never expires
	Dismissible *bool  `json:"dismissible,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"` // unix seconds
}

func parseJSONArray(data []byte, now time.Time) ([]model.Notification, error) {
	var entries []stdinEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &AdapterError{
			Source:  "stdin",
			Message: "failed to parse JSON input",
			Err:     err,
		}
	}

	notifications := make([]model.Notification, 0, len(entries))
	for _, entry := range entries {
		if n, ok := convertStdinEntry(entry, now); ok {
			notifications = append(notifications, n)
		}
	}
	return notifications, nil
}

func parseJSONLines(data []byte, now time.Time) []model.Notification {
	var notifications []model.Notification
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var entry stdinEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if n, ok := convertStdinEntry(entry, now); ok {
			notifications = append(notifications, n)
		}
	}
	return notifications
}

// convertStdinEntry converts an entry. Entries with neither title nor
// message, an unknown type, or a bad duration are rejected.
func convertStdinEntry(entry stdinEntry, now time.Time) (model.Notification, bool) {
	if entry.Title == "" && entry.Message == "" {
		return model.Notification{}, false
	}

	n := model.Notification{
		Source:      entry.Source,
		Title:       entry.Title,
		Message:     entry.Message,
		Dismissible: entry.Dismissible == nil || *entry.Dismissible,
	}
	if entry.Type != "" {
		t, err := model.ParseType(entry.Type)
		if err != nil {
			return model.Notification{}, false
		}
		n.Type = t
	}
	switch entry.Duration {
	case "":
	case "0":
		n.Duration = model.Infinite
	default:
		d, err := time.ParseDuration(entry.Duration)
		if err != nil || d <= 0 {
			return model.Notification{}, false
		}
		n.Duration = d
	}
	if entry.Timestamp > 0 {
		n.Timestamp = time.Unix(entry.Timestamp, 0)
	}

	n, err := newEntry(n, now)
	if err != nil {
		return model.Notification{}, false
	}
	return n, true
}

package input

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/overlay/internal/dbus"
	"github.com/jmylchreest/overlay/internal/model"
)

// DunstAdapter fetches notifications from dunstctl history.
type DunstAdapter struct {
	now    func() time.Time
	uptime func() (time.Duration, error)
}

// NewDunstAdapter creates a new DunstAdapter.
func NewDunstAdapter() *DunstAdapter {
	return &DunstAdapter{now: time.Now, uptime: systemUptime}
}

// Name returns the adapter identifier.
func (a *DunstAdapter) Name() string {
	return "dunst"
}

// Import fetches notifications from dunstctl history.
func (a *DunstAdapter) Import(ctx context.Context) ([]model.Notification, error) {
	cmd := exec.CommandContext(ctx, "dunstctl", "history")
	output, err := cmd.Output()
	if err != nil {
		return nil, &AdapterError{
			Source:  "dunst",
			Message: "failed to execute dunstctl history",
			Err:     err,
		}
	}
	return parseDunstHistory(output, a.now(), a.uptime)
}

// dunstHistory represents the top-level dunstctl history JSON structure.
type dunstHistory struct {
	Type string         `json:"type"`
	Data [][]dunstEntry `json:"data"`
}

// dunstEntry represents a single notification in dunstctl history.
type dunstEntry struct {
	AppName   dunstValue `json:"appname"`
	Summary   dunstValue `json:"summary"`
	Body      dunstValue `json:"body"`
	Timestamp dunstValue `json:"timestamp"`
	Timeout   dunstValue `json:"timeout"`
	Urgency   dunstValue `json:"urgency"`
}

// dunstValue represents a typed value in dunst JSON.
// dunst uses {"type": "INT", "data": 123} format.
type dunstValue struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// String returns the value as a string.
func (v dunstValue) String() string {
	switch d := v.Data.(type) {
	case string:
		return d
	case float64:
		return strconv.FormatFloat(d, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", d)
	}
}

// Int64 returns the value as an int64.
func (v dunstValue) Int64() int64 {
	switch d := v.Data.(type) {
	case float64:
		return int64(d)
	case string:
		i, _ := strconv.ParseInt(d, 10, 64)
		return i
	default:
		return 0
	}
}

// parseDunstHistory parses dunstctl history JSON output. uptime converts
// dunst's since-boot timestamps; nil treats them as unknown.
func parseDunstHistory(data []byte, now time.Time, uptime func() (time.Duration, error)) ([]model.Notification, error) {
	var history dunstHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, &AdapterError{
			Source:  "dunst",
			Message: "failed to parse dunstctl history JSON",
			Err:     err,
		}
	}

	var boot time.Time
	if uptime != nil {
		if up, err := uptime(); err == nil {
			boot = now.Add(-up)
		}
	}

	var notifications []model.Notification
	// dunst nests entries: data is [[entry1, entry2, ...]]
	for _, group := range history.Data {
		for _, entry := range group {
			n, err := convertDunstEntry(entry, now, boot)
			if err != nil {
				continue
			}
			notifications = append(notifications, n)
		}
	}
	return notifications, nil
}

// convertDunstEntry converts a dunst entry. Urgency maps to a type the same
// way D-Bus urgency hints do.
func convertDunstEntry(entry dunstEntry, now, boot time.Time) (model.Notification, error) {
	n := model.Notification{
		Source:      entry.AppName.String(),
		Title:       entry.Summary.String(),
		Message:     entry.Body.String(),
		Type:        dbus.TypeForUrgency(int(entry.Urgency.Int64())),
		Timestamp:   dunstTime(entry.Timestamp.Int64(), boot),
		Dismissible: true,
	}
	switch timeout := entry.Timeout.Int64(); {
	case timeout == 0:
		n.Duration = model.Infinite
	case timeout > 0:
		n.Duration = time.Duration(timeout) * time.Millisecond
	}
	return newEntry(n, now)
}

// dunstTime converts a dunst timestamp (microseconds since boot) to wall
// time. A zero boot time leaves it unknown.
func dunstTime(micros int64, boot time.Time) time.Time {
	if micros <= 0 || boot.IsZero() {
		return time.Time{}
	}
	return boot.Add(time.Duration(micros) * time.Microsecond)
}

// systemUptime reads /proc/uptime.
func systemUptime() (time.Duration, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty /proc/uptime")
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

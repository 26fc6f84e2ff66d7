// Package output provides formatters for history and queue listings.
package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/overlay/internal/model"
)

// Formatter writes notifications to w.
type Formatter interface {
	Format(w io.Writer, notifications []model.Notification) error
}

// FormatType represents an output format.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatDmenu FormatType = "dmenu"
	FormatIDs   FormatType = "ids"
)

// Formats lists the supported formats.
func Formats() []FormatType {
	return []FormatType{FormatPlain, FormatJSON, FormatYAML, FormatDmenu, FormatIDs}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (FormatType, error) {
	f := FormatType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template      string    // Custom text/template for plain and dmenu
	ShowIndex     bool      // Prefix a 1-based index
	ShowTime      bool      // Show the relative time
	ShowSource    bool      // Show the source
	MessageMaxLen int       // Truncate messages (0 = unlimited)
	Separator     string    // Field separator for dmenu
	Now           time.Time // Reference time for relative times (zero = time.Now())
}

// DefaultFormatterOptions returns the options used by the CLI.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:     true,
		ShowTime:      true,
		ShowSource:    true,
		MessageMaxLen: 80,
		Separator:     " | ",
	}
}

// NewFormatter creates a formatter. Invalid templates are an error.
func NewFormatter(format FormatType, opts FormatterOptions) (Formatter, error) {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatYAML:
		return NewYAMLFormatter(), nil
	case FormatIDs:
		return NewIDsFormatter(), nil
	case FormatDmenu:
		return NewDmenuFormatter(opts)
	case FormatPlain, "":
		return NewPlainFormatter(opts)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// templateData is passed to custom templates.
type templateData struct {
	Index        int
	Notification *model.Notification
	RelativeTime string
}

func parseTemplate(name, text string, now func() time.Time) (*template.Template, error) {
	if text == "" {
		return nil, nil
	}
	tmpl, err := template.New(name).Funcs(templateFuncs(now)).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	return tmpl, nil
}

func templateFuncs(now func() time.Time) template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"reltime": func(t time.Time) string {
			return humanTime(t, now())
		},
		"typeIcon": typeIcon,
	}
}

// typeIcon is a one-character marker per type.
func typeIcon(t model.Type) string {
	switch t {
	case model.TypeSuccess:
		return "+"
	case model.TypeError:
		return "!"
	case model.TypeWarning:
		return "?"
	case model.TypeInfo:
		return "i"
	case model.TypeLoading:
		return "~"
	default:
		return "-"
	}
}

// entryTime is the dismissal time, or the arrival time when unset.
func entryTime(n *model.Notification) time.Time {
	if !n.DismissedAt.IsZero() {
		return n.DismissedAt
	}
	return n.Timestamp
}

// humanTime renders t relative to now, e.g. "3 minutes ago".
func humanTime(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// compactTime renders t relative to now as now, 5m, 2h, 3d or 1w.
func compactTime(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw", int(d.Hours()/24/7))
	}
}

// singleLine collapses whitespace and truncates to maxLen runes.
func singleLine(s string, maxLen int) string {
	return truncate(strings.Join(strings.Fields(s), " "), maxLen)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// FormatField returns one field of a notification, for scripting.
func FormatField(n *model.Notification, field string) string {
	switch strings.ToLower(field) {
	case "id":
		return n.ID
	case "source", "app":
		return n.Source
	case "title", "summary":
		return n.Title
	case "message", "body":
		return n.Message
	case "type":
		return string(n.Type)
	case "reason":
		return n.DismissReason
	case "all", "full":
		return n.Title + "\n" + n.Message
	default:
		return n.Title
	}
}

func nowFunc(opts FormatterOptions) func() time.Time {
	if !opts.Now.IsZero() {
		return func() time.Time { return opts.Now }
	}
	return time.Now
}

package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/jmylchreest/overlay/internal/model"
)

// PlainFormatter writes a title line and an indented message per entry.
type PlainFormatter struct {
	opts     FormatterOptions
	now      func() time.Time
	template *template.Template
}

// NewPlainFormatter creates a plain text formatter.
func NewPlainFormatter(opts FormatterOptions) (*PlainFormatter, error) {
	now := nowFunc(opts)
	tmpl, err := parseTemplate("plain", opts.Template, now)
	if err != nil {
		return nil, err
	}
	return &PlainFormatter{opts: opts, now: now, template: tmpl}, nil
}

// Format writes notifications as plain text.
func (f *PlainFormatter) Format(w io.Writer, notifications []model.Notification) error {
	for i := range notifications {
		if err := f.formatOne(w, i+1, &notifications[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatOne(w io.Writer, index int, n *model.Notification) error {
	if f.template != nil {
		return f.template.Execute(w, templateData{
			Index:        index,
			Notification: n,
			RelativeTime: humanTime(entryTime(n), f.now()),
		})
	}

	var sb strings.Builder
	if f.opts.ShowIndex {
		fmt.Fprintf(&sb, "[%d] ", index)
	}
	fmt.Fprintf(&sb, "%s ", typeIcon(n.Type))
	if f.opts.ShowSource && n.Source != "" {
		fmt.Fprintf(&sb, "<%s> ", n.Source)
	}
	title := n.Title
	if title == "" {
		title = singleLine(n.Message, f.opts.MessageMaxLen)
	}
	sb.WriteString(title)
	if f.opts.ShowTime {
		fmt.Fprintf(&sb, " (%s)", humanTime(entryTime(n), f.now()))
	}
	if n.DismissReason != "" {
		fmt.Fprintf(&sb, " [%s]", n.DismissReason)
	}
	sb.WriteString("\n")

	if n.Title != "" && n.Message != "" {
		sb.WriteString("    " + singleLine(n.Message, f.opts.MessageMaxLen) + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

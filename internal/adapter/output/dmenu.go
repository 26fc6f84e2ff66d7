package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/jmylchreest/overlay/internal/model"
)

// DmenuFormatter writes one line per entry for dmenu, rofi or fzf.
type DmenuFormatter struct {
	opts     FormatterOptions
	now      func() time.Time
	template *template.Template
}

// NewDmenuFormatter creates a dmenu formatter.
func NewDmenuFormatter(opts FormatterOptions) (*DmenuFormatter, error) {
	now := nowFunc(opts)
	tmpl, err := parseTemplate("dmenu", opts.Template, now)
	if err != nil {
		return nil, err
	}
	return &DmenuFormatter{opts: opts, now: now, template: tmpl}, nil
}

// Format writes one line per notification.
func (f *DmenuFormatter) Format(w io.Writer, notifications []model.Notification) error {
	for i := range notifications {
		line, err := f.formatLine(i+1, &notifications[i])
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (f *DmenuFormatter) formatLine(index int, n *model.Notification) (string, error) {
	if f.template != nil {
		var buf strings.Builder
		err := f.template.Execute(&buf, templateData{
			Index:        index,
			Notification: n,
			RelativeTime: compactTime(entryTime(n), f.now()),
		})
		if err != nil {
			return "", fmt.Errorf("template failed for %s: %w", n.ID, err)
		}
		return singleLine(buf.String(), 0), nil
	}

	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	var parts []string
	if f.opts.ShowIndex {
		parts = append(parts, strconv.Itoa(index))
	}
	if f.opts.ShowTime {
		parts = append(parts, compactTime(entryTime(n), f.now()))
	}
	if f.opts.ShowSource && n.Source != "" {
		parts = append(parts, n.Source)
	}

	content := n.Title
	if msg := singleLine(n.Message, f.opts.MessageMaxLen); msg != "" {
		if content != "" {
			content += ": "
		}
		content += msg
	}
	parts = append(parts, content)

	return strings.Join(parts, sep), nil
}

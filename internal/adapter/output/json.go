package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/overlay/internal/model"
)

// JSONFormatter writes notifications as an indented JSON array.
type JSONFormatter struct{}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes notifications as a JSON array. An empty list is "[]".
func (f *JSONFormatter) Format(w io.Writer, notifications []model.Notification) error {
	if notifications == nil {
		notifications = []model.Notification{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(notifications)
}

// FormatSingle writes one notification as a JSON object.
func (f *JSONFormatter) FormatSingle(w io.Writer, n *model.Notification) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(n)
}

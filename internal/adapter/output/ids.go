package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/overlay/internal/model"
)

// IDsFormatter writes notification ids, one per line, for piping into
// other commands.
type IDsFormatter struct{}

// NewIDsFormatter creates an ids formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes one id per line.
func (f *IDsFormatter) Format(w io.Writer, notifications []model.Notification) error {
	for _, n := range notifications {
		if _, err := fmt.Fprintln(w, n.ID); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlay/internal/adapter/input"
	"github.com/jmylchreest/overlay/internal/model"
	"github.com/jmylchreest/overlay/internal/store"
)

// importedReason marks history entries that came from another source.
const importedReason = "imported"

var importOpts struct {
	from string
}

var historyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import notifications into history",
	Long: `Import notifications from another daemon's history or from stdin.

Stdin accepts dunstctl history output, a JSON array, or one JSON object per
line with source, title, message, type, duration and timestamp fields.

Examples:
  # Copy dunst's history
  overlay history import --from dunst

  # Import a saved export
  overlay history --format json > saved.json
  overlay history import --from stdin < saved.json`,
	Args: cobra.NoArgs,
	RunE: runHistoryImport,
}

func init() {
	historyCmd.AddCommand(historyImportCmd)

	historyImportCmd.Flags().StringVar(&importOpts.from, "from", "",
		fmt.Sprintf("Source %v (empty = detect a running daemon)", input.Sources()))
}

func runHistoryImport(cmd *cobra.Command, args []string) error {
	from := importOpts.from
	if from == "stdin" {
		adapter := input.NewStdinAdapterWithReader(cmd.InOrStdin())
		return importFrom(cmd, adapter)
	}
	adapter, err := input.NewAdapter(from)
	if err != nil {
		return fmt.Errorf("%w (choose one of: %s)", err, strings.Join(input.Sources(), ", "))
	}
	return importFrom(cmd, adapter)
}

func importFrom(cmd *cobra.Command, adapter input.InputAdapter) error {
	notifications, err := adapter.Import(cmd.Context())
	if err != nil {
		return err
	}

	h, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	count, err := recordImported(h, notifications, time.Now())
	if err != nil {
		return err
	}
	logger.Debug("import finished", "source", adapter.Name(), "read", len(notifications), "recorded", count)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d notification(s) from %s\n", count, adapter.Name())
	return nil
}

// recordImported stores notifications as already-dismissed history entries.
func recordImported(h *store.History, notifications []model.Notification, now time.Time) (int, error) {
	count := 0
	for _, n := range notifications {
		n.DismissedAt = n.Timestamp
		if n.DismissedAt.IsZero() {
			n.DismissedAt = now
		}
		n.DismissReason = importedReason
		if err := h.Record(n); err != nil {
			return count, fmt.Errorf("failed to record %s: %w", n.ID, err)
		}
		count++
	}
	return count, nil
}

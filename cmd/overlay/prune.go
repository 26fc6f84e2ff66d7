package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlay/internal/core"
	"github.com/jmylchreest/overlay/internal/model"
	"github.com/jmylchreest/overlay/internal/store"
)

var pruneOpts struct {
	olderThan string
	keep      int
	dryRun    bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old notifications from history",
	Long: `Remove old notifications from the persistent history.

Without flags, prunes to [history] keep from the config.

Examples:
  # Remove notifications dismissed more than 7 days ago
  overlay prune --older-than 7d

  # Keep only the 100 most recent notifications
  overlay prune --keep 100

  # Preview what would be removed (dry run)
  overlay prune --older-than 48h --dry-run`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringVar(&pruneOpts.olderThan, "older-than", "",
		"Remove notifications older than this duration (e.g., 48h, 7d, 1w)")
	pruneCmd.Flags().IntVar(&pruneOpts.keep, "keep", 0,
		"Keep only the N most recent notifications (0=use config)")
	pruneCmd.Flags().BoolVar(&pruneOpts.dryRun, "dry-run", false,
		"Show what would be removed without actually removing")
}

func runPrune(cmd *cobra.Command, args []string) error {
	var olderThan time.Duration
	if pruneOpts.olderThan != "" {
		d, err := core.ParseDuration(pruneOpts.olderThan)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		olderThan = d
	}
	keep := pruneOpts.keep
	if keep == 0 && olderThan == 0 {
		keep = cfg.History.Keep
	}
	if keep == 0 && olderThan == 0 {
		return fmt.Errorf("specify --older-than or --keep")
	}

	h, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	out := cmd.OutOrStdout()
	now := time.Now()

	if pruneOpts.dryRun {
		removed, err := previewPrune(h.All(), keep, olderThan, now)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			fmt.Fprintln(out, "No notifications to remove")
			return nil
		}
		fmt.Fprintf(out, "Would remove %d notification(s):\n", len(removed))
		for i, n := range removed {
			if i >= 10 {
				fmt.Fprintf(out, "  ... and %d more\n", len(removed)-10)
				break
			}
			fmt.Fprintf(out, "  - [%s] %s (%s)\n", n.Source, displayTitle(n), n.RelativeTime())
		}
		return nil
	}

	removed, err := h.Prune(keep, olderThan, now)
	if err != nil {
		return err
	}
	if removed == 0 {
		fmt.Fprintln(out, "No notifications to remove")
		return nil
	}
	fmt.Fprintf(out, "Removed %d notification(s)\n", removed)
	return nil
}

// previewPrune runs the prune against an in-memory copy and returns the
// entries it would drop.
func previewPrune(entries []model.Notification, keep int, olderThan time.Duration, now time.Time) ([]model.Notification, error) {
	preview := store.NewHistory(nil)
	for _, n := range entries {
		if err := preview.Record(n); err != nil {
			return nil, err
		}
	}
	if _, err := preview.Prune(keep, olderThan, now); err != nil {
		return nil, err
	}

	var removed []model.Notification
	for _, n := range entries {
		if _, ok := preview.Get(n.ID); !ok {
			removed = append(removed, n)
		}
	}
	return removed, nil
}

func displayTitle(n model.Notification) string {
	if n.Title != "" {
		return n.Title
	}
	return n.MessageTruncated(40)
}

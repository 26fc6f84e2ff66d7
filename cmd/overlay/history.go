package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlay/internal/adapter/output"
	"github.com/jmylchreest/overlay/internal/core"
	"github.com/jmylchreest/overlay/internal/model"
	"github.com/jmylchreest/overlay/internal/store"
)

var historyOpts struct {
	// Filter options
	since  string
	source string
	typ    string
	limit  int
	search string
	filter string

	// Sort options
	sortBy    string
	sortOrder string

	// Output options
	format   string
	field    string
	template string
	follow   bool
}

var historyCmd = &cobra.Command{
	Use:   "history [index|id]",
	Short: "Query dismissed notification history",
	Long: `Query the notifications recorded by overlayd after they left the screen.

With an index (1-based, after filtering and sorting) or an id or unique id
prefix, outputs that single notification.

Filter expressions combine comma-separated conditions that must all match:
  source=slack,type!=info       exact / not equal
  message~deploy                contains (case-insensitive)
  title~=(?i)^build             regular expression
  timestamp>1h                  newer than one hour ago
  reason=dismissed              how it left the screen

Examples:
  # Errors from the last day as JSON
  overlay history --type error --since 1d --format json

  # Pick one with a launcher and print its message
  overlay history --format dmenu | fuzzel -d | cut -d' ' -f1 | xargs overlay history --field message

  # Stream new entries as overlayd records them
  overlay history --follow`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete entries from history",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistoryDelete,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry from history",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyDeleteCmd, historyClearCmd)

	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Show entries from the last duration (e.g., 1h, 7d, 1w)")
	historyCmd.Flags().StringVar(&historyOpts.source, "source", "",
		"Filter by source application (exact match)")
	historyCmd.Flags().StringVar(&historyOpts.typ, "type", "",
		fmt.Sprintf("Filter by type %v", model.Types()))
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Maximum number of entries to show (0=unlimited)")
	historyCmd.Flags().StringVarP(&historyOpts.search, "search", "s", "",
		"Search in title and message")
	historyCmd.Flags().StringVar(&historyOpts.filter, "filter", "",
		"Filter expression (see above)")

	historyCmd.Flags().StringVar(&historyOpts.sortBy, "sort", string(core.SortByTimestamp),
		"Sort by field (timestamp, source, type)")
	historyCmd.Flags().StringVar(&historyOpts.sortOrder, "order", string(core.SortDesc),
		"Sort order (asc, desc)")

	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", string(output.FormatPlain),
		fmt.Sprintf("Output format %v", output.Formats()))
	historyCmd.Flags().StringVar(&historyOpts.field, "field", "",
		"Output a single field of one entry (id, source, title, message, type, reason, full)")
	historyCmd.Flags().StringVar(&historyOpts.template, "template", "",
		"Custom Go template for plain and dmenu output")
	historyCmd.Flags().BoolVarP(&historyOpts.follow, "follow", "F", false,
		"Keep running and print new entries as they are recorded")
}

func runHistory(cmd *cobra.Command, args []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	query, err := newHistoryQuery()
	if err != nil {
		return err
	}

	entries := query.apply(h.All())

	if len(args) > 0 {
		n, ok := lookupEntry(h.All(), entries, args[0])
		if !ok {
			return fmt.Errorf("no history entry matches %q", args[0])
		}
		return writeSingle(cmd.OutOrStdout(), query.formatter, n)
	}

	if err := query.formatter.Format(cmd.OutOrStdout(), entries); err != nil {
		return err
	}
	if historyOpts.follow {
		return followHistory(cmd, h, query)
	}
	return nil
}

// historyQuery holds the parsed filter, sort and output flags.
type historyQuery struct {
	filter    core.FilterOptions
	expr      *core.FilterExpr
	sort      core.SortOptions
	formatter output.Formatter
}

func newHistoryQuery() (*historyQuery, error) {
	q := &historyQuery{
		filter: core.FilterOptions{Source: historyOpts.source},
		sort: core.SortOptions{
			Field: core.ParseSortField(historyOpts.sortBy),
			Order: core.ParseSortOrder(historyOpts.sortOrder),
		},
	}

	if historyOpts.since != "" {
		d, err := core.ParseDuration(historyOpts.since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		q.filter.Since = d
	}
	if historyOpts.typ != "" {
		t, err := model.ParseType(historyOpts.typ)
		if err != nil {
			return nil, err
		}
		q.filter.Type = t
	}
	if historyOpts.filter != "" {
		expr, err := core.ParseFilter(historyOpts.filter)
		if err != nil {
			return nil, fmt.Errorf("invalid --filter: %w", err)
		}
		q.expr = expr
	}

	format, err := output.ParseFormat(historyOpts.format)
	if err != nil {
		return nil, err
	}
	opts := output.DefaultFormatterOptions()
	opts.Template = historyOpts.template
	q.formatter, err = output.NewFormatter(format, opts)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// apply filters, searches, sorts and limits entries.
func (q *historyQuery) apply(entries []model.Notification) []model.Notification {
	entries = core.Filter(entries, q.filter)
	if q.expr != nil {
		entries = core.FilterWithExpr(entries, q.expr)
	}
	if historyOpts.search != "" {
		entries = core.Search(entries, historyOpts.search)
	}
	core.Sort(entries, q.sort)
	if historyOpts.limit > 0 && len(entries) > historyOpts.limit {
		entries = entries[:historyOpts.limit]
	}
	return entries
}

// lookupEntry resolves a 1-based index into the listed entries, or an id or
// unique id prefix across the whole history.
func lookupEntry(all, listed []model.Notification, arg string) (model.Notification, bool) {
	if idx, err := strconv.Atoi(arg); err == nil && idx > 0 {
		return core.LookupByIndex(listed, idx)
	}
	if n, ok := core.LookupByID(all, arg); ok {
		return n, true
	}
	return core.LookupByPrefix(all, arg)
}

func writeSingle(w io.Writer, formatter output.Formatter, n model.Notification) error {
	if historyOpts.field != "" {
		_, err := fmt.Fprintln(w, output.FormatField(&n, historyOpts.field))
		return err
	}
	return formatter.Format(w, []model.Notification{n})
}

// followHistory prints entries recorded by another process until the
// command is interrupted.
func followHistory(cmd *cobra.Command, h *store.History, query *historyQuery) error {
	events, err := h.Subscribe()
	if err != nil {
		return err
	}
	defer h.Unsubscribe(events)

	watcher := store.NewFileWatcher(h, historyPath(), logger)
	if err := watcher.Start(); err != nil {
		return err
	}
	defer func() { _ = watcher.Stop() }()

	ctx := cmd.Context()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type != store.ChangeHydrate && ev.Type != store.ChangeRecord {
				continue
			}
			var added []model.Notification
			for _, id := range ev.IDs {
				if n, ok := h.Get(id); ok {
					added = append(added, n)
				}
			}
			added = query.apply(added)
			if len(added) == 0 {
				continue
			}
			if err := query.formatter.Format(cmd.OutOrStdout(), added); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	all := h.All()
	for _, arg := range args {
		n, ok := core.LookupByID(all, arg)
		if !ok {
			n, ok = core.LookupByPrefix(all, arg)
		}
		if !ok {
			return fmt.Errorf("no history entry matches %q", arg)
		}
		if err := h.Delete(n.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", n.ID)
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	count := h.Count()
	if err := h.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d notification(s)\n", count)
	return nil
}

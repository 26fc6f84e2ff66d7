package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlay/internal/daemon"
	"github.com/jmylchreest/overlay/internal/dbus"
	"github.com/jmylchreest/overlay/internal/display"
	"github.com/jmylchreest/overlay/internal/layout"
	"github.com/jmylchreest/overlay/internal/queue"
	"github.com/jmylchreest/overlay/internal/tui"
)

var tuiOpts struct {
	layout  string
	monitor bool
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive overlay TUI",
	Long: `Launch the terminal renderer for the layout registry and the toast stack.

Layout elements are drawn by z-index; elements with a "when" rule are shown
or hidden as the terminal is resized. Toasts count down in the corner set by
[display] position; focusing a toast pauses its countdown.

With --monitor, notifications sent to the desktop notification daemon are
mirrored into the toast stack.

Key bindings:
  tab/shift+tab  Select layout element
  s / h / t      Show / hide / toggle selected element
  ? / a          Help / about modal
  esc            Close modals
  ↑/↓            Focus toast (pauses its countdown)
  d / D          Dismiss focused toast / all toasts
  n / p          Demo toast / promise toast
  q              Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().StringVar(&tuiOpts.layout, "layout", "",
		fmt.Sprintf("Layout file or embedded layout name (embedded: %v)", layout.ListEmbeddedLayouts()))
	tuiCmd.Flags().BoolVar(&tuiOpts.monitor, "monitor", false,
		"Mirror D-Bus notifications into the toast stack")
}

func runTUI(cmd *cobra.Command, args []string) error {
	defs, err := loadLayout()
	if err != nil {
		return err
	}

	// The TUI owns the terminal; keep log output out of it.
	if !globalOpts.verbose {
		logger = slog.New(slog.DiscardHandler)
	}

	q := queue.New(
		queue.WithMax(cfg.Queue.MaxNotifications),
		queue.WithDurations(cfg.Durations()),
		queue.WithLogger(logger),
	)
	defer func() { _ = q.Close() }()
	dm := display.NewManager(q, cfg, logger)

	opts := tui.RunOptions{
		Options: tui.Options{
			Context: cmd.Context(),
			Config:  cfg,
			Queue:   q,
			Display: dm,
			Layout:  defs,
			Logger:  logger,
		},
	}
	if tuiOpts.monitor {
		opts.OnStart = attachMonitor(dm)
	}
	return tui.Run(opts)
}

// loadLayout resolves --layout, then [layout] file, then the embedded
// default. A name without a matching file is looked up among the embedded
// layouts.
func loadLayout() (*layout.Definitions, error) {
	name := tuiOpts.layout
	if name == "" {
		name = cfg.Layout.File
	}
	if name == "" {
		name = "default"
	}

	if _, err := os.Stat(name); err == nil {
		defs, err := layout.LoadDefinitions(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load layout %s: %w", name, err)
		}
		return defs, nil
	}
	if defs, ok := layout.GetEmbeddedLayout(name); ok {
		return defs, nil
	}
	return nil, fmt.Errorf("layout %q not found", name)
}

// attachMonitor returns an OnStart hook that routes captured Notify calls
// into the TUI's queue.
func attachMonitor(dm *display.Manager) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		bridge := daemon.NewBridge(nil, queue.MustFromContext(ctx), dm, cfg, logger)
		bridge.Attach()

		monitor := dbus.NewMonitor(logger)
		monitor.SetNotifyHandler(bridge.HandleNotify)
		if err := monitor.Start(); err != nil {
			return fmt.Errorf("failed to start D-Bus monitor: %w", err)
		}
		go func() {
			<-ctx.Done()
			_ = monitor.Stop()
		}()
		return nil
	}
}

// Package main is the entry point for the overlayd notification daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmylchreest/overlay/internal/audio"
	"github.com/jmylchreest/overlay/internal/clock"
	"github.com/jmylchreest/overlay/internal/config"
	"github.com/jmylchreest/overlay/internal/daemon"
	"github.com/jmylchreest/overlay/internal/dbus"
	"github.com/jmylchreest/overlay/internal/display"
	"github.com/jmylchreest/overlay/internal/queue"
	"github.com/jmylchreest/overlay/internal/store"
)

const appName = "overlayd"

var (
	// Build-time variables
	version = "dev"
)

func main() {
	monitorMode := flag.Bool("monitor", false, "Run in monitor mode (passive, no sounds, works alongside another notification daemon)")
	headless := flag.Bool("headless", false, "Do not draw popups, even when [popup] is enabled")
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", config.ConfigPath(), "Path to the config file")
	flag.Parse()

	if *showVersion {
		fmt.Println(appName, "version", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := &daemonRunner{
		cfg:        cfg,
		configPath: *configPath,
		monitor:    *monitorMode,
		logger:     logger,
	}
	run := d.run
	if !*headless && cfg.Popup.Enabled {
		run = d.runWithPopups
	}
	if err := run(ctx); err != nil {
		logger.Error("overlayd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("overlayd stopped")
}

// renderer draws the mounted notifications until ctx is done.
type renderer interface {
	Run(ctx context.Context) error
	UpdateConfig(cfg *config.Config)
}

// daemonRunner owns the components shared by daemon and monitor mode.
type daemonRunner struct {
	cfg        *config.Config
	configPath string
	monitor    bool
	logger     *slog.Logger

	// newRenderer is set when popups are drawn.
	newRenderer func(q *queue.Queue, dm *display.Manager) renderer

	queue    *queue.Queue
	display  *display.Manager
	renderer renderer
	bridge   *daemon.Bridge
	history  *store.History
	notifier *daemon.InternalNotifier
}

func (d *daemonRunner) run(ctx context.Context) error {
	mode := "daemon"
	if d.monitor {
		mode = "monitor"
	}
	d.logger.Info("starting overlayd", "version", version, "mode", mode)

	d.queue = queue.New(
		queue.WithMax(d.cfg.Queue.MaxNotifications),
		queue.WithDurations(d.cfg.Durations()),
		queue.WithLogger(d.logger),
	)
	defer func() { _ = d.queue.Close() }()

	d.openHistory()
	if d.history != nil {
		defer func() {
			if err := d.history.Close(); err != nil {
				d.logger.Warn("error closing history", "error", err)
			}
		}()
	}

	d.display = display.NewManager(d.queue, d.cfg, d.logger)
	defer d.startDisplay(ctx)()

	if d.newRenderer != nil {
		d.renderer = d.newRenderer(d.queue, d.display)
		defer d.startRenderer(ctx)()
	}

	var err error
	if d.monitor {
		err = d.runMonitor(ctx)
	} else {
		err = d.runServer(ctx)
	}
	return err
}

// startDisplay runs the display manager until the returned stop function is
// called or ctx is done. stop waits for the manager to finish.
func (d *daemonRunner) startDisplay(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.display.Run(ctx); err != nil {
			d.logger.Error("display manager failed", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
		d.display.Detach()
	}
}

// startRenderer runs the renderer until the returned stop function is
// called or ctx is done. stop waits for the renderer to finish.
func (d *daemonRunner) startRenderer(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.renderer.Run(ctx); err != nil {
			d.logger.Error("popup renderer failed", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// openHistory opens the history file and prunes it to the configured size.
// History is best effort: a failure leaves it disabled.
func (d *daemonRunner) openHistory() {
	if !d.cfg.History.Enabled {
		return
	}

	path := d.cfg.HistoryPath()
	h, err := store.Open(path)
	if err != nil {
		d.logger.Warn("failed to open history, continuing without it", "path", path, "error", err)
		return
	}
	d.history = h

	removed, err := h.Prune(d.cfg.History.Keep, 0, time.Now())
	if err != nil {
		d.logger.Warn("failed to prune history", "error", err)
	}
	d.logger.Info("history initialized", "path", path, "count", h.Count(), "pruned", removed)
}

// runServer claims org.freedesktop.Notifications and plays sounds.
func (d *daemonRunner) runServer(ctx context.Context) error {
	server := dbus.NewNotificationServer(d.logger)
	server.SetServerInfo(dbus.ServerInfo{
		Name:        appName,
		Vendor:      "overlay",
		Version:     version,
		SpecVersion: "1.2",
	})

	d.bridge = daemon.NewBridge(server, d.queue, d.display, d.cfg, d.logger)
	if d.history != nil {
		d.bridge.SetHistory(d.history)
	}

	audioManager := audio.NewManager(d.cfg, nil, d.logger)
	if err := audioManager.Start(ctx); err != nil {
		d.logger.Warn("failed to start audio manager", "error", err)
	}
	defer audioManager.Stop()
	d.bridge.SetSounds(audioManager)

	d.notifier = daemon.NewInternalNotifier(clock.Real(), d.logger)
	d.notifier.SetNotifyHandler(server.NotifyInternal)
	d.bridge.SetNotifier(d.notifier)

	d.bridge.Attach()

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start D-Bus server: %w", err)
	}
	defer func() {
		if err := server.Stop(); err != nil {
			d.logger.Warn("error stopping D-Bus server", "error", err)
		}
	}()

	stopWatcher := d.watchConfig(ctx)
	defer stopWatcher()

	d.logger.Info("overlayd ready", "dbus_interface", dbus.DBusInterface)
	d.notifier.NotifyStartup(version)

	<-ctx.Done()
	d.logger.Info("shutting down")
	return nil
}

// runMonitor observes Notify calls addressed to another daemon. Captured
// notifications run through the same queue and lifetimes so history records
// when they would have expired.
func (d *daemonRunner) runMonitor(ctx context.Context) error {
	d.bridge = daemon.NewBridge(nil, d.queue, d.display, d.cfg, d.logger)
	if d.history != nil {
		d.bridge.SetHistory(d.history)
	}
	d.bridge.Attach()

	monitor := dbus.NewMonitor(d.logger)
	monitor.SetNotifyHandler(d.bridge.HandleNotify)
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("failed to start D-Bus monitor: %w", err)
	}
	defer func() {
		if err := monitor.Stop(); err != nil {
			d.logger.Warn("error stopping monitor", "error", err)
		}
	}()

	stopWatcher := d.watchConfig(ctx)
	defer stopWatcher()

	d.logger.Info("overlayd monitor ready - passively capturing notifications")

	<-ctx.Done()
	d.logger.Info("shutting down")
	return nil
}

// watchConfig hot-reloads the config file into the bridge. It returns the
// function that stops the watcher.
func (d *daemonRunner) watchConfig(ctx context.Context) func() {
	watcher := daemon.NewConfigWatcher(d.configPath, d.logger)
	watcher.SetReloadCallback(func(cfg *config.Config) {
		d.bridge.ApplyConfig(cfg)
		if d.renderer != nil {
			d.renderer.UpdateConfig(cfg)
		}
		if d.notifier != nil {
			d.notifier.NotifyConfigReloaded()
		}
	})
	watcher.SetErrorCallback(func(err error) {
		if d.notifier != nil {
			d.notifier.NotifyConfigError(err)
		}
	})

	if err := watcher.Start(ctx, d.cfg); err != nil {
		d.logger.Warn("failed to start config watcher", "error", err)
		return func() {}
	}
	return watcher.Stop
}

// Package popup draws mounted notifications as Wayland layer-shell popups
// with GTK4 and libadwaita.
package popup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	coreglib "github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/overlay/internal/config"
	"github.com/jmylchreest/overlay/internal/display"
	"github.com/jmylchreest/overlay/internal/queue"
)

const (
	appID = "io.github.jmylchreest.overlayd"

	// refreshInterval picks up countdown transitions that produce no
	// queue event, such as a popup starting to leave.
	refreshInterval = 200 * time.Millisecond
)

const stylesheet = `
.notification-popup {
	border-radius: 10px;
	padding: 4px;
}
.notification-popup.dark { background-color: #242424; color: #ffffff; }
.notification-popup.light { background-color: #fafafa; color: #1e1e1e; }
.notification-popup.type-success { border-left: 4px solid #2ec27e; }
.notification-popup.type-error { border-left: 4px solid #e01b24; }
.notification-popup.type-warning { border-left: 4px solid #e5a50a; }
.notification-popup.type-info { border-left: 4px solid #3584e4; }
.notification-popup.type-loading { border-left: 4px solid #9141ac; }
.notification-popup.leaving { opacity: 0.5; }
.notification-title { font-weight: bold; }
.notification-source, .notification-status { font-size: smaller; opacity: 0.7; }
`

// Run runs a GTK application on the calling goroutine and calls work on a
// new goroutine once the application is active. The application quits when
// work returns and Run returns work's error. work's context is cancelled
// when the application shuts down.
func Run(ctx context.Context, logger *slog.Logger, work func(ctx context.Context, app *gtk.Application) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := adw.NewApplication(appID, 0)
	errc := make(chan error, 1)
	var started atomic.Bool

	app.ConnectActivate(func() {
		if !started.CompareAndSwap(false, true) {
			logger.Warn("application already running")
			return
		}

		// GTK applications quit when their last window closes.
		keepAlive := gtk.NewWindow()
		keepAlive.SetApplication(&app.Application)
		keepAlive.SetDefaultSize(1, 1)
		keepAlive.SetDecorated(false)
		keepAlive.SetVisible(false)

		go func() {
			errc <- work(ctx, &app.Application)
			glib.IdleAdd(func() { app.Quit() })
		}()
	})
	app.ConnectShutdown(func() {
		logger.Info("application shutting down")
		cancel()
	})

	status := app.Run([]string{os.Args[0]})
	cancel()

	if started.Load() {
		if err := <-errc; err != nil {
			return err
		}
	}
	if status != 0 {
		return fmt.Errorf("gtk application exited with status %d", status)
	}
	return nil
}

// Renderer keeps one popup per mounted notification. Hovering a popup
// pauses its countdown and clicking it dismisses it.
type Renderer struct {
	app     *gtk.Application
	queue   *queue.Queue
	display *display.Manager
	logger  *slog.Logger

	mu  sync.Mutex
	cfg *config.Config

	pending atomic.Bool

	// Owned by the GTK main loop.
	popups map[string]*Popup
	shown  map[string]display.State
	css    *gtk.CSSProvider
}

// NewRenderer creates a renderer for the notifications mounted by dm.
func NewRenderer(app *gtk.Application, q *queue.Queue, dm *display.Manager, cfg *config.Config, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Renderer{
		app:     app,
		queue:   q,
		display: dm,
		logger:  logger,
		cfg:     cfg,
		popups:  make(map[string]*Popup),
		shown:   make(map[string]display.State),
	}
}

// UpdateConfig applies a reloaded config. Existing popups move to the new
// placement on the next refresh.
func (r *Renderer) UpdateConfig(cfg *config.Config) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	r.schedule()
}

// Run refreshes the popups on queue events and on a short interval until
// ctx is done, then closes them.
func (r *Renderer) Run(ctx context.Context) error {
	events, err := r.queue.Subscribe()
	if err != nil {
		return &display.Error{Message: "failed to subscribe to queue", Cause: err}
	}
	defer r.queue.Unsubscribe(events)

	glib.IdleAdd(r.applyStylesheet)
	r.schedule()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	r.logger.Info("popup renderer started")
	for {
		select {
		case _, ok := <-events:
			if !ok {
				glib.IdleAdd(r.closeAll)
				return nil
			}
			r.schedule()
		case <-ticker.C:
			r.schedule()
		case <-ctx.Done():
			glib.IdleAdd(r.closeAll)
			r.logger.Info("popup renderer stopped")
			return nil
		}
	}
}

func (r *Renderer) config() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// schedule queues one refresh on the GTK main loop.
func (r *Renderer) schedule() {
	if r.pending.CompareAndSwap(false, true) {
		glib.IdleAdd(func() {
			r.pending.Store(false)
			r.refresh()
		})
	}
}

func (r *Renderer) refresh() {
	cfg := r.config()
	pos := config.Position(cfg.Display.Position)
	plan := display.PlanStack(r.shown, r.display.States(), pos)

	for _, id := range plan.Remove {
		if p, ok := r.popups[id]; ok {
			p.Close()
			delete(r.popups, id)
		}
	}
	for _, s := range plan.Update {
		if p, ok := r.popups[s.Notification.ID]; ok {
			p.Update(s)
		}
	}
	for _, s := range plan.Create {
		id := s.Notification.ID
		p := newPopup(r.app, s, cfg.Popup)
		p.onHover = func(hovering bool) { r.display.Hover(id, hovering) }
		p.onDismiss = func() { r.display.Dismiss(id) }
		r.popups[id] = p
	}

	monitor := r.monitor(cfg.Popup.Monitor)
	for id, slot := range plan.Slots {
		if p, ok := r.popups[id]; ok {
			p.Place(display.Place(pos, cfg.Popup, slot), monitor)
		}
	}
	r.shown = plan.Shown
}

func (r *Renderer) closeAll() {
	for id, p := range r.popups {
		p.Close()
		delete(r.popups, id)
	}
	r.shown = make(map[string]display.State)
}

func (r *Renderer) applyStylesheet() {
	d := gdk.DisplayGetDefault()
	if d == nil {
		r.logger.Warn("no display available, popups are unstyled")
		return
	}
	r.css = gtk.NewCSSProvider()
	r.css.LoadFromString(stylesheet)
	gtk.StyleContextAddProviderForDisplay(d, r.css, gtk.STYLE_PROVIDER_PRIORITY_APPLICATION)
}

// monitor returns the configured monitor, 1-indexed, or nil for the
// compositor's choice. An unavailable monitor falls back to the first.
func (r *Renderer) monitor(n int) *gdk.Monitor {
	if n <= 0 {
		return nil
	}
	d := gdk.DisplayGetDefault()
	if d == nil {
		return nil
	}
	monitors := d.Monitors()
	if monitors == nil || monitors.NItems() == 0 {
		return nil
	}

	index := uint(n - 1)
	if index >= monitors.NItems() {
		r.logger.Warn("configured monitor not available, using the first",
			"configured", n,
			"available", monitors.NItems(),
		)
		index = 0
	}
	return wrapMonitor(monitors.Item(index))
}

// wrapMonitor converts a list item to a gdk.Monitor. gotk4 does not export
// its own wrapper; gdk.Monitor embeds the object pointer first.
func wrapMonitor(obj *coreglib.Object) *gdk.Monitor {
	if obj == nil {
		return nil
	}
	type monitor struct {
		_ [0]func()
		*coreglib.Object
	}
	return (*gdk.Monitor)(unsafe.Pointer(&monitor{Object: obj}))
}

//go:build !nogtk

package main

import (
	"context"

	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/overlay/internal/display"
	"github.com/jmylchreest/overlay/internal/popup"
	"github.com/jmylchreest/overlay/internal/queue"
)

// runWithPopups runs the daemon inside a GTK application that draws the
// mounted notifications as layer-shell popups.
func (d *daemonRunner) runWithPopups(ctx context.Context) error {
	return popup.Run(ctx, d.logger, func(ctx context.Context, app *gtk.Application) error {
		d.newRenderer = func(q *queue.Queue, dm *display.Manager) renderer {
			return popup.NewRenderer(app, q, dm, d.cfg, d.logger)
		}
		return d.run(ctx)
	})
}

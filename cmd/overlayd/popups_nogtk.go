//go:build nogtk

package main

import "context"

// runWithPopups runs headless in builds without GTK.
func (d *daemonRunner) runWithPopups(ctx context.Context) error {
	d.logger.Warn("built without GTK, popups are disabled")
	return d.run(ctx)
}

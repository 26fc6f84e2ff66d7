// Package dbus implements the org.freedesktop.Notifications D-Bus interface.
// It provides a server that feeds received notifications into the overlay
// queue, a passive monitor, and a client used by the overlay CLI.
package dbus

// Package daemon wires overlayd together. It maps D-Bus notification ids to
// queue ids, routes D-Bus requests into the notification queue, reports
// display closes back as NotificationClosed signals, records history, plays
// sounds and hot-reloads the configuration file.
package daemon

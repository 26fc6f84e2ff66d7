// Package display runs the lifetime of each queued notification: the
// auto-dismiss countdown, pause while hovered, and the leaving phase before
// the notification is removed from the queue.
package display

package dbus

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// ErrNotConnected is returned when emitting without a session bus connection.
var ErrNotConnected = errors.New("not connected to D-Bus")

// EmitNotificationClosed emits the NotificationClosed signal.
// This signal is emitted when a notification is closed, either by timeout,
// user dismissal, or explicit close request.
func (s *NotificationServer) EmitNotificationClosed(id uint32, reason CloseReason) error {
	if s.conn == nil {
		return ErrNotConnected
	}

	err := s.conn.Emit(DBusPath, DBusInterface+".NotificationClosed", id, uint32(reason))
	if err != nil {
		return fmt.Errorf("failed to emit NotificationClosed signal: %w", err)
	}

	s.logger.Debug("emitted NotificationClosed signal", "id", id, "reason", reason.String())
	return nil
}

// EmitActionInvoked emits the ActionInvoked signal for an action key.
func (s *NotificationServer) EmitActionInvoked(id uint32, actionKey string) error {
	if s.conn == nil {
		return ErrNotConnected
	}

	err := s.conn.Emit(DBusPath, DBusInterface+".ActionInvoked", id, actionKey)
	if err != nil {
		return fmt.Errorf("failed to emit ActionInvoked signal: %w", err)
	}

	s.logger.Debug("emitted ActionInvoked signal", "id", id, "action", actionKey)
	return nil
}

// InvokeAction emits ActionInvoked for an active notification. Inactive ids
// are ignored.
func (s *NotificationServer) InvokeAction(id uint32, actionKey string) error {
	if !s.IsActive(id) {
		return nil
	}
	return s.EmitActionInvoked(id, actionKey)
}

// CloseWithReason marks a notification closed and emits the signal.
// Ids that are no longer active are ignored so each close is signalled once.
func (s *NotificationServer) CloseWithReason(id uint32, reason CloseReason) error {
	s.mu.Lock()
	active := s.activeIDs[id]
	delete(s.activeIDs, id)
	s.mu.Unlock()

	if !active {
		return nil
	}
	return s.EmitNotificationClosed(id, reason)
}

// Connection returns the underlying D-Bus connection.
func (s *NotificationServer) Connection() *dbus.Conn {
	return s.conn
}

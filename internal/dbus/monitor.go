package dbus

import (
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Monitor passively observes D-Bus notification traffic without claiming ownership.
// This allows running alongside another notification daemon.
type Monitor struct {
	conn   *dbus.Conn
	logger *slog.Logger

	onNotify NotificationHandler
}

// NewMonitor creates a new notification monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger: logger,
	}
}

// SetNotifyHandler sets the callback for received notifications.
func (m *Monitor) SetNotifyHandler(handler NotificationHandler) {
	m.onNotify = handler
}

// Start begins monitoring D-Bus for notification traffic.
func (m *Monitor) Start() error {
	// A private connection: BecomeMonitor turns it into a receive-only stream.
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	m.conn = conn

	rules := []string{
		"type='method_call',interface='org.freedesktop.Notifications',member='Notify'",
	}

	err = conn.BusObject().Call(
		"org.freedesktop.DBus.Monitoring.BecomeMonitor",
		0,
		rules,
		uint32(0),
	).Err
	if err != nil {
		// Older buses lack BecomeMonitor; fall back to eavesdropping
		m.logger.Warn("BecomeMonitor not available, trying AddMatch", "error", err)
		return m.startWithAddMatch()
	}

	m.logger.Info("started D-Bus monitor using BecomeMonitor")
	go m.processMessages()
	return nil
}

// startWithAddMatch uses the older AddMatch API for eavesdropping.
func (m *Monitor) startWithAddMatch() error {
	matchRule := "type='method_call',interface='org.freedesktop.Notifications',member='Notify',eavesdrop='true'"

	err := m.conn.BusObject().Call(
		"org.freedesktop.DBus.AddMatch",
		0,
		matchRule,
	).Err
	if err != nil {
		return fmt.Errorf("failed to add match rule (eavesdrop may require permissions): %w", err)
	}

	m.logger.Info("started D-Bus monitor using AddMatch with eavesdrop")
	go m.processMessages()
	return nil
}

// processMessages reads and processes D-Bus messages.
func (m *Monitor) processMessages() {
	ch := make(chan *dbus.Message, 100)
	m.conn.Eavesdrop(ch)

	for msg := range ch {
		if msg.Type != dbus.TypeMethodCall {
			continue
		}
		if msg.Headers[dbus.FieldInterface].Value() != DBusInterface {
			continue
		}
		if msg.Headers[dbus.FieldMember].Value() != "Notify" {
			continue
		}

		m.handleNotify(msg)
	}
}

// handleNotify parses a Notify method call and invokes the handler.
func (m *Monitor) handleNotify(msg *dbus.Message) {
	req, err := parseNotify(msg.Body)
	if err != nil {
		m.logger.Warn("malformed Notify call", "error", err)
		return
	}

	// The server's reply with the real id is not visible to a monitor.
	id := monitorID(req)

	m.logger.Debug("captured notification",
		"app", req.AppName,
		"summary", req.Summary,
		"id", id)

	if m.onNotify != nil {
		m.onNotify(req, id, false)
	}
}

// parseNotify decodes the Notify(susssasa{sv}i) argument list.
func parseNotify(body []any) (*Request, error) {
	if len(body) < 8 {
		return nil, fmt.Errorf("expected 8 arguments, got %d", len(body))
	}

	req := &Request{}
	var ok bool
	if req.AppName, ok = body[0].(string); !ok {
		return nil, fmt.Errorf("invalid app_name type %T", body[0])
	}
	if req.ReplacesID, ok = body[1].(uint32); !ok {
		return nil, fmt.Errorf("invalid replaces_id type %T", body[1])
	}
	if req.AppIcon, ok = body[2].(string); !ok {
		return nil, fmt.Errorf("invalid app_icon type %T", body[2])
	}
	if req.Summary, ok = body[3].(string); !ok {
		return nil, fmt.Errorf("invalid summary type %T", body[3])
	}
	if req.Body, ok = body[4].(string); !ok {
		return nil, fmt.Errorf("invalid body type %T", body[4])
	}
	if actions, ok := body[5].([]string); ok {
		req.Actions = actions
	}
	if hints, ok := body[6].(map[string]dbus.Variant); ok {
		req.Hints = hints
	}
	if timeout, ok := body[7].(int32); ok {
		req.ExpireTimeout = timeout
	}
	return req, nil
}

// monitorID derives a stable pseudo-id from the notification content.
func monitorID(r *Request) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(r.AppName))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(r.Summary))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(r.Body))
	return h.Sum32()
}

// Stop stops the monitor.
func (m *Monitor) Stop() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

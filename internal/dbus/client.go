package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/overlay/internal/model"
)

// Client sends notifications to whichever server owns
// org.freedesktop.Notifications on the session bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Closed is a received NotificationClosed signal.
type Closed struct {
	ID     uint32
	Reason CloseReason
}

// NewClient connects to the session bus.
func NewClient() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{
		conn: conn,
		obj:  conn.Object(DBusBusName, DBusPath),
	}, nil
}

// Notify sends a notification built from n and returns the server's id.
// A non-zero replacesID updates that notification in place.
func (c *Client) Notify(ctx context.Context, n model.Notification, replacesID uint32) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(UrgencyForType(n.Type)),
		HintType:        dbus.MakeVariant(string(n.Type)),
		HintDismissible: dbus.MakeVariant(n.Dismissible),
	}

	var id uint32
	err := c.obj.CallWithContext(ctx, DBusInterface+".Notify", 0,
		n.Source,
		replacesID,
		"",
		n.Title,
		n.Message,
		[]string{},
		hints,
		ExpireTimeout(n.Duration),
	).Store(&id)
	if err != nil {
		return 0, fmt.Errorf("notify failed: %w", err)
	}
	return id, nil
}

// CloseNotification asks the server to close a notification.
func (c *Client) CloseNotification(ctx context.Context, id uint32) error {
	if err := c.obj.CallWithContext(ctx, DBusInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("close notification %d failed: %w", id, err)
	}
	return nil
}

// ServerInformation queries the running server's identity.
func (c *Client) ServerInformation(ctx context.Context) (ServerInfo, error) {
	var info ServerInfo
	err := c.obj.CallWithContext(ctx, DBusInterface+".GetServerInformation", 0).
		Store(&info.Name, &info.Vendor, &info.Version, &info.SpecVersion)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("get server information failed: %w", err)
	}
	return info, nil
}

// WatchClosed subscribes to NotificationClosed signals. Call it before
// Notify to avoid missing a fast close. The returned stop function removes
// the subscription.
func (c *Client) WatchClosed() (<-chan Closed, func(), error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(DBusPath),
		dbus.WithMatchInterface(DBusInterface),
		dbus.WithMatchMember("NotificationClosed"),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return nil, nil, fmt.Errorf("failed to add signal match: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)

	out := make(chan Closed, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if closed, ok := parseClosed(sig); ok {
					select {
					case out <- closed:
					default:
					}
				}
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		c.conn.RemoveSignal(signals)
		_ = c.conn.RemoveMatchSignal(opts...)
		close(done)
	}
	return out, stop, nil
}

// Close closes the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func parseClosed(sig *dbus.Signal) (Closed, bool) {
	if sig == nil || sig.Name != DBusInterface+".NotificationClosed" || len(sig.Body) < 2 {
		return Closed{}, false
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return Closed{}, false
	}
	reason, ok := sig.Body[1].(uint32)
	if !ok {
		return Closed{}, false
	}
	return Closed{ID: id, Reason: CloseReason(reason)}, true
}

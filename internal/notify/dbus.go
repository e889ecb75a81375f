//go:build linux

package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	busName   = "org.freedesktop.Notifications"
	busPath   = "/org/freedesktop/Notifications"
	busMethod = "org.freedesktop.Notifications.Notify"
	busClose  = "org.freedesktop.Notifications.CloseNotification"
)

type dbusNotifier struct {
	app string
	obj dbus.BusObject
}

// New connects to the session bus and returns a Notifier posting as app.
// Without a session bus (headless daemon, CI) it returns Discard.
func New(app string) (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return Discard, nil //nolint:nilerr // headless hosts simply get no notifications
	}
	return &dbusNotifier{app: app, obj: conn.Object(busName, busPath)}, nil
}

func (d *dbusNotifier) hints(n Notification) map[string]dbus.Variant {
	h := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(n.Urgency)),
		"desktop-entry": dbus.MakeVariant(d.app),
	}
	if n.Category != "" {
		h["category"] = dbus.MakeVariant(n.Category)
	}
	return h
}

// Notify(app_name, replaces_id, app_icon, summary, body, actions, hints, expire_timeout) -> id
func (d *dbusNotifier) Notify(n Notification) (uint32, error) {
	var id uint32
	err := d.obj.Call(busMethod, 0,
		d.app, n.ReplacesID, n.Icon, n.Title, n.Body, []string{}, d.hints(n), n.Timeout,
	).Store(&id)
	if err != nil {
		return 0, fmt.Errorf("dbus notify: %w", err)
	}
	return id, nil
}

func (d *dbusNotifier) Close(id uint32) error {
	if err := d.obj.Call(busClose, 0, id).Err; err != nil {
		return fmt.Errorf("dbus close notification %d: %w", id, err)
	}
	return nil
}

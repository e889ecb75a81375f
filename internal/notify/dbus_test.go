//go:build linux

package notify

import (
	"os"
	"testing"
)

func requireSessionBus(t *testing.T) Notifier {
	t.Helper()
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("no D-Bus session available")
	}
	n, err := New(AppName)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if n == Discard {
		t.Skip("session bus unreachable")
	}
	return n
}

func TestHintsIncludeCategory(t *testing.T) {
	d := &dbusNotifier{app: AppName}

	h := d.hints(Notification{Urgency: UrgencyNormal, Category: "transfer.complete"})
	if got := h["desktop-entry"].Value(); got != AppName {
		t.Errorf("desktop-entry = %v, want %q", got, AppName)
	}
	if got := h["urgency"].Value(); got != byte(UrgencyNormal) {
		t.Errorf("urgency = %v, want %d", got, UrgencyNormal)
	}
	if got := h["category"].Value(); got != "transfer.complete" {
		t.Errorf("category = %v, want transfer.complete", got)
	}

	if _, ok := d.hints(Notification{})["category"]; ok {
		t.Error("empty category should not be sent")
	}
}

func TestNotifyReplacesExisting(t *testing.T) {
	notifier := requireSessionBus(t)

	id1, err := notifier.Notify(Notification{Title: "scrobsync test", Body: "first", Timeout: 2000})
	if err != nil {
		t.Fatalf("first Notify() error: %v", err)
	}
	if id1 == 0 {
		t.Fatal("Notify() returned id=0")
	}

	id2, err := notifier.Notify(Notification{Title: "scrobsync test", Body: "second", Timeout: 1000, ReplacesID: id1})
	if err != nil {
		t.Fatalf("second Notify() error: %v", err)
	}
	if id2 != id1 {
		t.Errorf("replacing notification got id=%d, want id=%d", id2, id1)
	}

	if err := notifier.Close(id2); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

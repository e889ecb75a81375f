// Package notify posts desktop notifications about background scrobbling.
package notify

// AppName identifies scrobsync to the notification server.
const AppName = "scrobsync"

// Urgency is the freedesktop urgency hint.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string
	Body       string
	Icon       string // icon name or path
	Category   string // freedesktop category hint, e.g. "transfer.complete"
	Timeout    int32  // ms, -1 = server default, 0 = never expire
	ReplacesID uint32 // 0 = new notification
	Urgency    Urgency
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify returns the server-assigned id, or 0 when nothing was shown.
	Notify(n Notification) (uint32, error)
	Close(id uint32) error
}

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Notification) (uint32, error) { return 0, nil }

func (discard) Close(uint32) error { return nil }

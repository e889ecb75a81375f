package notify

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize/english"

	"github.com/llehouerou/scrobsync/internal/logging"
	"github.com/llehouerou/scrobsync/internal/schedule"
)

const announceTimeout = 5000 // ms

// TransitionSource publishes background task transitions.
type TransitionSource interface {
	Subscribe() (<-chan schedule.Transition, func())
}

// Announcer posts a desktop notification whenever a background pass
// scrobbles plays. Consecutive notifications replace each other.
type Announcer struct {
	notifier Notifier
	source   TransitionSource
	lastID   uint32
}

// NewAnnouncer creates an Announcer.
func NewAnnouncer(notifier Notifier, source TransitionSource) *Announcer {
	return &Announcer{notifier: notifier, source: source}
}

// Serve announces until ctx is cancelled.
func (a *Announcer) Serve(ctx context.Context) error {
	ch, unsubscribe := a.source.Subscribe()
	defer unsubscribe()
	log := logging.Component("notify")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-ch:
			if !ok {
				return nil
			}
			n, ok := notificationFor(t)
			if !ok {
				continue
			}
			n.ReplacesID = a.lastID
			id, err := a.notifier.Notify(n)
			if err != nil {
				log.Warn().Err(err).Msg("send notification")
				continue
			}
			a.lastID = id
		}
	}
}

func (a *Announcer) String() string { return "announcer" }

func notificationFor(t schedule.Transition) (Notification, bool) {
	if t.State != schedule.Completed || t.Accepted <= 0 {
		return Notification{}, false
	}
	return Notification{
		Title:    "Scrobbled to Last.fm",
		Body:     fmt.Sprintf("%s submitted in the background", english.Plural(t.Accepted, "play", "")),
		Icon:     "audio-x-generic",
		Category: "transfer.complete",
		Timeout:  announceTimeout,
		Urgency:  UrgencyLow,
	}, true
}

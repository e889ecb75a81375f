package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/llehouerou/scrobsync/internal/schedule"
	"github.com/llehouerou/scrobsync/internal/synclog"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) Notify(n Notification) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return uint32(len(r.sent)), nil
}

func (r *recordingNotifier) Close(uint32) error { return nil }

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

type chanSource chan schedule.Transition

func (c chanSource) Subscribe() (<-chan schedule.Transition, func()) {
	return c, func() {}
}

func TestNotificationFor(t *testing.T) {
	tests := []struct {
		name string
		in   schedule.Transition
		want bool
		body string
	}{
		{"completed with plays", schedule.Transition{State: schedule.Completed, Outcome: synclog.Succeeded, Accepted: 3}, true, "3 plays submitted in the background"},
		{"single play", schedule.Transition{State: schedule.Completed, Accepted: 1}, true, "1 play submitted in the background"},
		{"completed without plays", schedule.Transition{State: schedule.Completed}, false, ""},
		{"running", schedule.Transition{State: schedule.Running}, false, ""},
		{"expired", schedule.Transition{State: schedule.Expired, Outcome: synclog.Expired}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := notificationFor(tt.in)
			if ok != tt.want {
				t.Fatalf("notificationFor() ok = %v, want %v", ok, tt.want)
			}
			if ok && n.Body != tt.body {
				t.Errorf("Body = %q, want %q", n.Body, tt.body)
			}
		})
	}
}

func TestAnnouncerReplacesPrevious(t *testing.T) {
	src := make(chanSource, 4)
	notifier := &recordingNotifier{}
	a := NewAnnouncer(notifier, src)

	src <- schedule.Transition{State: schedule.Running}
	src <- schedule.Transition{State: schedule.Completed, Accepted: 2}
	src <- schedule.Transition{State: schedule.Completed, Accepted: 5}
	close(src)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Serve(ctx); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	sent := notifier.all()
	if len(sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(sent))
	}
	if sent[0].ReplacesID != 0 || sent[1].ReplacesID != 1 {
		t.Errorf("ReplacesID = %d, %d; want 0, 1", sent[0].ReplacesID, sent[1].ReplacesID)
	}
}

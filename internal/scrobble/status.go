package scrobble

import (
	"sync"
	"time"
)

const (
	statusBufferSize = 16
	// DefaultStatusHold is how long a finished pass stays visible before
	// the status returns to idle.
	DefaultStatusHold = 5 * time.Second
)

// Phase is the user-visible sync state.
type Phase int

const (
	Idle Phase = iota
	Syncing
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Syncing:
		return "syncing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Status is a snapshot of the sync state.
type Status struct {
	Phase    Phase
	Accepted int
	Err      error
	At       time.Time
}

type eventKind int

const (
	evStart eventKind = iota
	evSucceed
	evFail
	evReset
)

type statusEvent struct {
	kind     eventKind
	accepted int
	err      error
	// gen ties a reset to the terminal state that scheduled it.
	gen      uint64
}

// transition is the state machine: it returns the next status and whether
// the event applies in the current phase.
func transition(cur Status, ev statusEvent, now time.Time) (Status, bool) {
	switch ev.kind {
	case evStart:
		if cur.Phase == Syncing {
			return cur, false
		}
		return Status{Phase: Syncing, At: now}, true
	case evSucceed:
		if cur.Phase != Syncing {
			return cur, false
		}
		return Status{Phase: Succeeded, Accepted: ev.accepted, At: now}, true
	case evFail:
		if cur.Phase != Syncing {
			return cur, false
		}
		return Status{Phase: Failed, Err: ev.err, At: now}, true
	case evReset:
		if cur.Phase != Succeeded && cur.Phase != Failed {
			return cur, false
		}
		return Status{Phase: Idle, At: now}, true
	}
	return cur, false
}

// StatusFeed publishes status changes to subscribers. Terminal states
// schedule a reset event that returns the feed to Idle after the hold period.
type StatusFeed struct {
	hold time.Duration

	mu      sync.Mutex
	current Status
	gen     uint64
	reset   *time.Timer
	subs    map[chan Status]struct{}
}

// NewStatusFeed creates a feed holding terminal states for hold.
func NewStatusFeed(hold time.Duration) *StatusFeed {
	if hold <= 0 {
		hold = DefaultStatusHold
	}
	return &StatusFeed{hold: hold, subs: make(map[chan Status]struct{})}
}

// Current returns the latest status.
func (f *StatusFeed) Current() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Subscribe returns a channel of status changes and a function that ends
// the subscription. Slow subscribers miss updates rather than block.
func (f *StatusFeed) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, statusBufferSize)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *StatusFeed) start() { f.dispatch(statusEvent{kind: evStart}) }
func (f *StatusFeed) succeed(n int) { f.dispatch(statusEvent{kind: evSucceed, accepted: n}) }
func (f *StatusFeed) fail(err error) { f.dispatch(statusEvent{kind: evFail, err: err}) }

func (f *StatusFeed) dispatch(ev statusEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ev.kind == evReset && ev.gen != f.gen {
		return // superseded by a newer pass
	}
	next, ok := transition(f.current, ev, time.Now())
	if !ok {
		return
	}
	f.current = next
	f.gen++

	if f.reset != nil {
		f.reset.Stop()
		f.reset = nil
	}
	if next.Phase == Succeeded || next.Phase == Failed {
		gen := f.gen
		f.reset = time.AfterFunc(f.hold, func() {
			f.dispatch(statusEvent{kind: evReset, gen: gen})
		})
	}

	for ch := range f.subs {
		select {
		case ch <- next:
		default:
			// Drop if buffer full
		}
	}
}

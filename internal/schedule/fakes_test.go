package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llehouerou/scrobsync/internal/scrobble"
	"github.com/llehouerou/scrobsync/internal/synclog"
)

type fakeHost struct {
	mu        sync.Mutex
	handler   Handler
	submits   []time.Duration
	cancelled int
}

func (h *fakeHost) Register(_ string, handler Handler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handler != nil {
		return errors.New("already registered")
	}
	h.handler = handler
	return nil
}

func (h *fakeHost) Submit(_ string, after time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.submits = append(h.submits, after)
	return nil
}

func (h *fakeHost) Cancel(string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled++
}

// fire runs the handler synchronously with a fresh task.
func (h *fakeHost) fire() *Task {
	task := newTask(context.Background(), TaskID)
	h.handler(task)
	return task
}

type fakeEngine struct {
	mu    sync.Mutex
	calls []scrobble.Options
	res   scrobble.Result
	err   error
	block bool
}

func (e *fakeEngine) Sync(ctx context.Context, opts scrobble.Options) (scrobble.Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, opts)
	e.mu.Unlock()
	if e.block {
		<-ctx.Done()
		return scrobble.Result{}, ctx.Err()
	}
	return e.res, e.err
}

func (e *fakeEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type fakeProber struct{ err error }

func (p fakeProber) Probe(context.Context) error { return p.err }

type fakeSession struct {
	ok    bool
	calls atomic.Int32
}

func (s *fakeSession) IsAuthenticated() bool {
	s.calls.Add(1)
	return s.ok
}

type fakeAuthorizer struct {
	ok    bool
	calls atomic.Int32
}

func (a *fakeAuthorizer) Authorized(context.Context) bool {
	a.calls.Add(1)
	return a.ok
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []synclog.Entry
}

func (r *fakeRecorder) Record(e synclog.Entry) (synclog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *fakeRecorder) all() []synclog.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]synclog.Entry(nil), r.entries...)
}

func drain(ch <-chan Transition) []State {
	var states []State
	for {
		select {
		case t := <-ch:
			states = append(states, t.State)
		default:
			return states
		}
	}
}

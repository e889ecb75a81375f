package schedule

import (
	"context"
	"sync"
)

// Task is one invocation of a registered handler. Its context is cancelled
// when the task completes or runs out of budget.
type Task struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	onExpire func()
	finished bool
	expired  bool

	result chan bool
	done   chan struct{}
}

func newTask(parent context.Context, id string) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		result: make(chan bool, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the identifier the handler was registered with.
func (t *Task) ID() string { return t.id }

// Context is cancelled when the task ends.
func (t *Task) Context() context.Context { return t.ctx }

// SetExpirationHandler installs fn to run if the budget runs out before
// Complete is called.
func (t *Task) SetExpirationHandler(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExpire = fn
}

// Complete reports the result to the host. It returns false if the task had
// already ended, in which case the report is dropped.
func (t *Task) Complete(success bool) bool {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return false
	}
	t.finished = true
	t.mu.Unlock()

	t.result <- success
	t.cancel()
	close(t.done)
	return true
}

// Expired reports whether the task ran out of budget.
func (t *Task) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// expire runs the expiration handler, then cancels the task context.
func (t *Task) expire() {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	t.expired = true
	fn := t.onExpire
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
	t.cancel()
	close(t.done)
}

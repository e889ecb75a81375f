// Package schedule runs sync passes in the background. A Host wakes
// registered handlers; the Scheduler is the handler that runs a pass.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/scrobsync/internal/logging"
)

// ErrUnknownTask is returned when submitting a task that was never registered.
var ErrUnknownTask = errors.New("task not registered")

// Handler runs one task. It must call Complete when done.
type Handler func(t *Task)

// Host is a wake-up facility for background work.
type Host interface {
	// Register installs the handler for id. It must happen before the
	// first Submit for that id.
	Register(id string, h Handler) error
	// Submit requests a wake-up no earlier than after. A pending request for
	// the same id is replaced.
	Submit(id string, after time.Duration) error
	// Cancel drops a pending request.
	Cancel(id string)
}

// TimerHost is an in-process Host. Wake-ups are clamped to a minimum
// interval and every task gets a fixed execution budget.
type TimerHost struct {
	minInterval time.Duration
	budget      time.Duration
	log         zerolog.Logger

	mu       sync.Mutex
	handlers map[string]Handler
	timers   map[string]*time.Timer

	wake    chan string
	stopped chan struct{}
	once    sync.Once
}

// NewTimerHost creates a TimerHost.
func NewTimerHost(minInterval, budget time.Duration) *TimerHost {
	return &TimerHost{
		minInterval: minInterval,
		budget:      budget,
		log:         logging.Component("host"),
		handlers:    make(map[string]Handler),
		timers:      make(map[string]*time.Timer),
		wake:        make(chan string),
		stopped:     make(chan struct{}),
	}
}

func (h *TimerHost) Register(id string, handler Handler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.handlers[id]; ok {
		return fmt.Errorf("task %q already registered", id)
	}
	h.handlers[id] = handler
	return nil
}

func (h *TimerHost) Submit(id string, after time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.handlers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	if after < h.minInterval {
		after = h.minInterval
	}
	if t, ok := h.timers[id]; ok {
		t.Stop()
	}
	h.timers[id] = time.AfterFunc(after, func() {
		select {
		case h.wake <- id:
		case <-h.stopped:
		}
	})
	return nil
}

func (h *TimerHost) Cancel(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.timers[id]; ok {
		t.Stop()
		delete(h.timers, id)
	}
}

// Serve dispatches wake-ups until ctx is cancelled. Running tasks are
// cancelled and waited for before it returns.
func (h *TimerHost) Serve(ctx context.Context) error {
	var running sync.WaitGroup
	defer func() {
		h.once.Do(func() { close(h.stopped) })
		running.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-h.wake:
			h.mu.Lock()
			handler := h.handlers[id]
			delete(h.timers, id)
			h.mu.Unlock()

			running.Add(1)
			go func() {
				defer running.Done()
				h.run(ctx, id, handler)
			}()
		}
	}
}

func (h *TimerHost) run(ctx context.Context, id string, handler Handler) {
	task := newTask(ctx, id)
	deadline := time.AfterFunc(h.budget, task.expire)
	defer deadline.Stop()

	go handler(task)

	select {
	case ok := <-task.result:
		h.log.Debug().Str("task", id).Bool("success", ok).Msg("task completed")
	case <-task.done:
		if task.Expired() {
			h.log.Warn().Str("task", id).Dur("budget", h.budget).Msg("task expired")
		}
	case <-ctx.Done():
		task.cancel()
	}
}

func (h *TimerHost) String() string { return "timer-host" }

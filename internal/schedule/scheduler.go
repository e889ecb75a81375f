package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/scrobsync/internal/logging"
	"github.com/llehouerou/scrobsync/internal/metrics"
	"github.com/llehouerou/scrobsync/internal/scrobble"
	"github.com/llehouerou/scrobsync/internal/synclog"
)

// TaskID identifies the background sync task on the host.
const TaskID = "scrobsync.background-sync"

const transitionBufferSize = 16

// State is the lifecycle of the background task.
type State int

const (
	Idle State = iota
	Scheduled
	Running
	Completed
	Expired
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Expired:
		return "expired"
	default:
		return "idle"
	}
}

// Transition is published on every state change. Outcome and Accepted are
// set on Completed and Expired.
type Transition struct {
	State    State
	Outcome  synclog.Outcome
	Accepted int
	At       time.Time
}

// Syncer runs a sync pass.
type Syncer interface {
	Sync(ctx context.Context, opts scrobble.Options) (scrobble.Result, error)
}

// Session reports whether a Last.fm session is available.
type Session interface {
	IsAuthenticated() bool
}

// Authorizer reports whether the library can be read.
type Authorizer interface {
	Authorized(ctx context.Context) bool
}

// Config is what the scheduler needs at registration time.
type Config struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
	Prober       Prober
}

// Components are built after registration and handed over with Provide.
// Recorder may be nil.
type Components struct {
	Engine   Syncer
	Session  Session
	Library  Authorizer
	Recorder scrobble.Recorder
}

// Scheduler runs a background sync pass on every host wake-up.
type Scheduler struct {
	host Host
	cfg  Config
	deps Deferred[Components]
	log  zerolog.Logger
	now  func() time.Time

	mu    sync.Mutex
	state State
	subs  map[chan Transition]struct{}
}

// Register creates the Scheduler and installs its handler on host. It is
// meant to run before anything else is built; the components are supplied
// later with Provide, and wake-ups before that are reported as failures.
func Register(host Host, cfg Config) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	s := &Scheduler{
		host: host,
		cfg:  cfg,
		log:  logging.Component("scheduler"),
		now:  time.Now,
		subs: make(map[chan Transition]struct{}),
	}
	if err := host.Register(TaskID, s.handle); err != nil {
		return nil, err
	}
	return s, nil
}

// Provide supplies the sync engine and the gates checked before each pass.
func (s *Scheduler) Provide(c Components) {
	s.deps.Set(c)
}

// Start requests the first wake-up.
func (s *Scheduler) Start() error {
	if err := s.host.Submit(TaskID, s.cfg.Interval); err != nil {
		return err
	}
	s.publish(Transition{State: Scheduled})
	return nil
}

// Stop drops the pending wake-up.
func (s *Scheduler) Stop() {
	s.host.Cancel(TaskID)
	s.publish(Transition{State: Idle})
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel of transitions and a function that ends the
// subscription.
func (s *Scheduler) Subscribe() (<-chan Transition, func()) {
	ch := make(chan Transition, transitionBufferSize)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Scheduler) handle(task *Task) {
	s.publish(Transition{State: Running})

	// Re-arm before anything can fail so one bad run never ends the cycle.
	if err := s.host.Submit(TaskID, s.cfg.Interval); err != nil {
		s.log.Error().Err(err).Msg("reschedule background sync")
	}
	defer s.publish(Transition{State: Scheduled})

	task.SetExpirationHandler(func() {
		s.log.Warn().Msg("background sync ran out of time")
		s.record(synclog.Expired, 0, "background task budget exhausted")
		metrics.BackgroundRuns.WithLabelValues(string(synclog.Expired)).Inc()
		s.publish(Transition{State: Expired, Outcome: synclog.Expired})
	})

	res, outcome, err := s.run(task.Context())
	// Skipped passes report success to the host.
	if !task.Complete(err == nil || skipped(outcome)) {
		return
	}
	metrics.BackgroundRuns.WithLabelValues(string(outcome)).Inc()
	s.publish(Transition{State: Completed, Outcome: outcome, Accepted: res.Accepted})
}

// run returns a nil error with a skipped outcome when a gate stops the pass.
func (s *Scheduler) run(ctx context.Context) (scrobble.Result, synclog.Outcome, error) {
	if s.cfg.Prober != nil {
		pctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
		err := s.cfg.Prober.Probe(pctx)
		cancel()
		if err != nil {
			s.log.Info().Err(err).Msg("offline, skipping background sync")
			return scrobble.Result{}, synclog.SkippedNoNetwork, nil
		}
	}

	deps, err := s.deps.Get()
	if err != nil || deps.Engine == nil {
		s.log.Warn().Msg("background sync before startup finished")
		return scrobble.Result{}, synclog.Failed, scrobble.ErrNotReady
	}

	if deps.Session == nil || !deps.Session.IsAuthenticated() {
		s.log.Info().Msg("no last.fm session, skipping background sync")
		return scrobble.Result{}, synclog.SkippedUnauthenticated, nil
	}
	if deps.Library == nil || !deps.Library.Authorized(ctx) {
		s.log.Info().Msg("library not readable, skipping background sync")
		return scrobble.Result{}, synclog.SkippedUnauthenticated, nil
	}

	res, err := deps.Engine.Sync(ctx, scrobble.Options{Trigger: synclog.Background})
	if errors.Is(err, scrobble.ErrSyncInProgress) {
		s.log.Debug().Msg("sync already running, skipping background pass")
	}
	return res, scrobble.Outcome(err), err
}

func skipped(o synclog.Outcome) bool {
	return o == synclog.SkippedNoNetwork || o == synclog.SkippedUnauthenticated
}

func (s *Scheduler) record(outcome synclog.Outcome, accepted int, msg string) {
	deps, err := s.deps.Get()
	if err != nil || deps.Recorder == nil {
		return
	}
	entry := synclog.Entry{Outcome: outcome, Accepted: accepted, Message: msg, Trigger: synclog.Background}
	if _, err := deps.Recorder.Record(entry); err != nil {
		s.log.Warn().Err(err).Msg("record sync log entry")
	}
}

func (s *Scheduler) publish(t Transition) {
	t.At = s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = t.State
	for ch := range s.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

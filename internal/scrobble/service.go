package scrobble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/scrobsync/internal/lastfm"
	"github.com/llehouerou/scrobsync/internal/library"
	"github.com/llehouerou/scrobsync/internal/logging"
	"github.com/llehouerou/scrobsync/internal/metrics"
	"github.com/llehouerou/scrobsync/internal/state"
	"github.com/llehouerou/scrobsync/internal/synclog"
)

const defaultNonCriticalTimeout = 2 * time.Minute

// Store is the persistence the engine needs.
type Store interface {
	Snapshots(ctx context.Context) (map[string]state.SnapshotEntry, error)
	CacheClearer
	SnapshotCommitter
	PruneStore
	HistoryStore
}

// Remote is the Last.fm API surface used by the engine.
type Remote interface {
	Scrobbler
	RecentFetcher
}

// CacheClearer empties the caches.
type CacheClearer interface {
	ClearSnapshots(ctx context.Context) error
	ClearHistory(ctx context.Context) error
}

// PassLock excludes store access by other processes, typically a lock file
// next to the database.
type PassLock interface {
	TryLock() (bool, error)
	Unlock() error
}

// Recorder appends entries to the sync log.
type Recorder interface {
	Record(e synclog.Entry) (synclog.Entry, error)
}

// Deps are the collaborators of a Service. Artwork, Status and Lock are
// optional.
type Deps struct {
	Library library.Source
	Store   Store
	Remote  Remote
	Log     Recorder
	// Artwork loads cover art for tracks entering the cache.
	Artwork func(path string) []byte
	Status  *StatusFeed
	Lock    PassLock
}

// Config tunes a Service. Zero values take the defaults.
type Config struct {
	BatchSize          int
	Lookback           time.Duration
	Retention          time.Duration
	PruneInterval      time.Duration
	HistoryLimit       int
	NonCriticalTimeout time.Duration
}

// Options select what a single pass does.
type Options struct {
	// IncludeNonCritical also refreshes the history mirror and prunes the
	// cache, detached from the caller.
	IncludeNonCritical bool
	Trigger            synclog.Trigger
}

// Result describes a finished pass.
type Result struct {
	Accepted   int
	Ignored    int
	Candidates int
	Deferred   int
	FirstSync  bool
}

// Service runs sync passes one at a time.
type Service struct {
	library   library.Source
	store     Store
	synclog   Recorder
	passLock  PassLock
	artwork   func(path string) []byte
	status    *StatusFeed
	submitter *Submitter
	pruner    *Pruner
	mirror    *Mirror
	lookback  time.Duration
	detached  time.Duration
	log       zerolog.Logger
	now       func() time.Time

	busy       atomic.Bool
	// storeMu serializes store mutation between a pass and the detached
	// work of the previous one. passLock does the same across processes.
	storeMu    sync.Mutex
	background sync.WaitGroup

	mu          sync.RWMutex
	lastErr     error
	lastSuccess time.Time
}

// NewService wires a Service. It fails with ErrNotReady when a required
// collaborator is missing.
func NewService(deps Deps, cfg Config) (*Service, error) {
	switch {
	case deps.Library == nil:
		return nil, fmt.Errorf("%w: no library source", ErrNotReady)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: no store", ErrNotReady)
	case deps.Remote == nil:
		return nil, fmt.Errorf("%w: no last.fm client", ErrNotReady)
	case deps.Log == nil:
		return nil, fmt.Errorf("%w: no sync log", ErrNotReady)
	}

	status := deps.Status
	if status == nil {
		status = NewStatusFeed(0)
	}
	detached := cfg.NonCriticalTimeout
	if detached <= 0 {
		detached = defaultNonCriticalTimeout
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	log := logging.Component("sync")
	return &Service{
		library:   deps.Library,
		store:     deps.Store,
		synclog:   deps.Log,
		passLock:  deps.Lock,
		artwork:   deps.Artwork,
		status:    status,
		submitter: NewSubmitter(deps.Remote, deps.Store, cfg.BatchSize, log),
		pruner:    NewPruner(deps.Store, cfg.Retention, cfg.PruneInterval),
		mirror:    NewMirror(deps.Remote, deps.Store, cfg.HistoryLimit),
		lookback:  lookback,
		detached:  detached,
		log:       log,
		now:       time.Now,
	}, nil
}

// Sync runs one pass: snapshot the library, diff it against the cache,
// submit the first batch and commit. A call made while another pass runs
// returns ErrSyncInProgress without touching anything, as does a call made
// while another process holds the pass lock.
func (s *Service) Sync(ctx context.Context, opts Options) (Result, error) {
	if s == nil {
		return Result{}, ErrNotReady
	}
	if !s.busy.CompareAndSwap(false, true) {
		return Result{}, ErrSyncInProgress
	}
	defer s.busy.Store(false)

	unlock, err := s.lockStore()
	if err != nil {
		return Result{}, err
	}

	if opts.Trigger == "" {
		opts.Trigger = synclog.Manual
	}

	s.status.start()
	started := time.Now()
	res, err := s.critical(ctx)
	unlock()
	metrics.SyncDuration.Observe(time.Since(started).Seconds())
	s.finish(ctx, opts.Trigger, res, err)

	if opts.IncludeNonCritical && ctx.Err() == nil {
		s.runDetached(ctx)
	}
	return res, err
}

// lockStore takes storeMu, then the pass lock without waiting. The returned
// func releases both.
func (s *Service) lockStore() (func(), error) {
	s.storeMu.Lock()
	if s.passLock == nil {
		return s.storeMu.Unlock, nil
	}
	if err := tryPassLock(s.passLock); err != nil {
		s.storeMu.Unlock()
		return nil, err
	}
	return func() {
		if err := s.passLock.Unlock(); err != nil {
			s.log.Warn().Err(err).Msg("release sync lock")
		}
		s.storeMu.Unlock()
	}, nil
}

func tryPassLock(l PassLock) error {
	ok, err := l.TryLock()
	if err != nil {
		return fmt.Errorf("take sync lock: %w", err)
	}
	if !ok {
		return ErrSyncInProgress
	}
	return nil
}

// critical runs with the store locked.
func (s *Service) critical(ctx context.Context) (Result, error) {
	tracks, err := s.library.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("library snapshot: %w", err)
	}
	cached, err := s.store.Snapshots(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read snapshot cache: %w", err)
	}

	d := Detect(tracks, cached, s.now(), s.lookback)
	s.attachArtwork(&d, tracks, cached)
	metrics.CandidatePlays.Add(float64(d.PlayCount()))

	res := Result{Candidates: d.PlayCount(), FirstSync: d.FirstSync}
	if d.FirstSync {
		s.log.Info().Int("tracks", len(tracks)).Msg("first sync, recording baseline")
	}

	sub, err := s.submitter.Submit(ctx, d)
	res.Accepted = sub.Accepted
	res.Ignored = sub.Ignored
	res.Deferred = sub.Deferred
	return res, err
}

// attachArtwork loads cover art for tracks not cached yet.
func (s *Service) attachArtwork(d *Diff, tracks []library.Track, cached map[string]state.SnapshotEntry) {
	if s.artwork == nil {
		return
	}
	paths := make(map[string]string, len(tracks))
	for _, t := range tracks {
		if _, ok := cached[t.ID]; !ok && t.Path != "" {
			paths[t.ID] = t.Path
		}
	}
	if len(paths) == 0 {
		return
	}
	for i := range d.Baseline {
		if p, ok := paths[d.Baseline[i].TrackID]; ok {
			d.Baseline[i].Artwork = s.artwork(p)
		}
	}
	for i := range d.Pending {
		if p, ok := paths[d.Pending[i].Entry.TrackID]; ok {
			d.Pending[i].Entry.Artwork = s.artwork(p)
		}
	}
}

// Outcome classifies the error of a pass for the sync log.
func Outcome(err error) synclog.Outcome {
	switch {
	case err == nil:
		return synclog.Succeeded
	case errors.Is(err, lastfm.ErrNotAuthenticated), errors.Is(err, library.ErrNotAuthorized):
		return synclog.SkippedUnauthenticated
	default:
		return synclog.Failed
	}
}

func (s *Service) finish(ctx context.Context, trigger synclog.Trigger, res Result, err error) {
	outcome := Outcome(err)
	metrics.SyncPasses.WithLabelValues(string(trigger), string(outcome)).Inc()
	metrics.ScrobblesSubmitted.WithLabelValues("accepted").Add(float64(res.Accepted))
	metrics.ScrobblesSubmitted.WithLabelValues("ignored").Add(float64(res.Ignored))

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.lastSuccess = s.now()
	}
	s.mu.Unlock()

	if err != nil {
		s.status.fail(err)
		s.log.Error().Err(err).Str("trigger", string(trigger)).Str("outcome", string(outcome)).Msg("sync failed")
	} else {
		s.status.succeed(res.Accepted)
		s.log.Info().Str("trigger", string(trigger)).
			Int("candidates", res.Candidates).Int("accepted", res.Accepted).
			Int("ignored", res.Ignored).Int("deferred", res.Deferred).
			Msg("sync complete")
	}

	// An abandoned pass is recorded by whoever cancelled it.
	if err != nil && ctx.Err() != nil {
		return
	}
	if res.Accepted == 0 && err == nil {
		return
	}
	entry := synclog.Entry{Outcome: outcome, Accepted: res.Accepted, Trigger: trigger}
	if err != nil {
		entry.Message = err.Error()
	}
	if _, rerr := s.synclog.Record(entry); rerr != nil {
		s.log.Warn().Err(rerr).Msg("record sync log entry")
	}
}

// runDetached refreshes the history mirror and prunes the cache without
// blocking the caller. Failures are logged only.
func (s *Service) runDetached(parent context.Context) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		unlock, err := s.lockStore()
		if err != nil {
			s.log.Debug().Err(err).Msg("store busy, skipping history refresh and prune")
			return
		}
		defer unlock()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.detached)
		defer cancel()

		if n, err := s.mirror.Refresh(ctx); err != nil {
			s.log.Warn().Err(err).Msg("history mirror refresh failed")
		} else {
			s.log.Debug().Int("entries", n).Msg("history mirror refreshed")
		}

		if n, ran, err := s.pruner.Run(ctx); err != nil {
			s.log.Warn().Err(err).Msg("snapshot prune failed")
		} else if ran {
			s.log.Debug().Int("removed", n).Msg("snapshot cache pruned")
		}
	}()
}

// Wait blocks until detached work started by earlier passes has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// ClearCaches empties the selected caches. It is rejected while a pass runs.
func (s *Service) ClearCaches(ctx context.Context, snapshots, history bool) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer s.busy.Store(false)
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	return ClearStore(ctx, s.store, s.passLock, snapshots, history)
}

// ClearStore empties the selected caches of store while holding lock, which
// may be nil. It returns ErrSyncInProgress when lock is held elsewhere.
func ClearStore(ctx context.Context, store CacheClearer, lock PassLock, snapshots, history bool) error {
	if lock != nil {
		if err := tryPassLock(lock); err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()
	}

	if snapshots {
		if err := store.ClearSnapshots(ctx); err != nil {
			return fmt.Errorf("clear snapshot cache: %w", err)
		}
	}
	if history {
		if err := store.ClearHistory(ctx); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
	}
	return nil
}

// IsSyncing reports whether a pass is running.
func (s *Service) IsSyncing() bool {
	return s.busy.Load()
}

// LastError returns the error of the latest pass, nil if it succeeded.
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// LastSuccess returns when the latest successful pass finished.
func (s *Service) LastSuccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccess
}

// Status returns the feed publishing this service's state.
func (s *Service) Status() *StatusFeed {
	return s.status
}

package scrobble

import (
	"context"
	"sync"

	"github.com/llehouerou/scrobsync/internal/lastfm"
	"github.com/llehouerou/scrobsync/internal/library"
	"github.com/llehouerou/scrobsync/internal/synclog"
)

type fakeLibrary struct {
	mu     sync.Mutex
	tracks []library.Track
	err    error
}

func (f *fakeLibrary) Snapshot(context.Context) ([]library.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]library.Track, len(f.tracks))
	copy(out, f.tracks)
	return out, f.err
}

func (f *fakeLibrary) Authorized(context.Context) bool { return f.err == nil }

func (f *fakeLibrary) set(tracks ...library.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = tracks
}

type fakeRemote struct {
	mu      sync.Mutex
	batches [][]lastfm.ScrobbleTrack
	// result overrides the default of accepting every play.
	result *lastfm.ScrobbleResult
	err    error

	recent      []lastfm.RecentTrack
	recentErr   error
	recentCalls int

	// entered is signalled and release awaited inside ScrobbleBatch when set.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeRemote) ScrobbleBatch(ctx context.Context, tracks []lastfm.ScrobbleTrack) (lastfm.ScrobbleResult, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return lastfm.ScrobbleResult{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, tracks)
	if f.err != nil {
		return lastfm.ScrobbleResult{}, f.err
	}
	if f.result != nil {
		return *f.result, nil
	}
	return lastfm.ScrobbleResult{Accepted: len(tracks)}, nil
}

func (f *fakeRemote) RecentTracks(context.Context, int) ([]lastfm.RecentTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recentCalls++
	return f.recent, f.recentErr
}

func (f *fakeRemote) sent() [][]lastfm.ScrobbleTrack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func (f *fakeRemote) recentCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recentCalls
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []synclog.Entry
}

func (f *fakeRecorder) Record(e synclog.Entry) (synclog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeRecorder) all() []synclog.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]synclog.Entry(nil), f.entries...)
}

// fakePassLock stands in for a lock held by another process when held is set.
type fakePassLock struct {
	mu       sync.Mutex
	held     bool
	taken    int
	released int
}

func (l *fakePassLock) TryLock() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	l.taken++
	return true, nil
}

func (l *fakePassLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.released++
	return nil
}

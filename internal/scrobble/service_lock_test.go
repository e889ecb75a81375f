//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows

package scrobble

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/scrobsync/internal/filelock"
	"github.com/llehouerou/scrobsync/internal/state"
)

// newFileService opens its own connection to the database in dir, the way a
// second scrobsync process would.
func newFileService(t *testing.T, dir string, lib *fakeLibrary, remote *fakeRemote) *Service {
	t.Helper()
	store, err := state.OpenPath(filepath.Join(dir, "scrobsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc, err := NewService(Deps{
		Library: lib,
		Store:   store,
		Remote:  remote,
		Log:     &fakeRecorder{},
		Lock:    filelock.New(filepath.Join(dir, "scrobsync.lock")),
	}, Config{})
	require.NoError(t, err)
	svc.now = func() time.Time { return now }
	svc.pruner.now = svc.now
	return svc
}

func TestSync_ServicesSharingADatabaseNeverOverlap(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	seed, err := state.OpenPath(filepath.Join(dir, "scrobsync.db"))
	require.NoError(t, err)
	require.NoError(t, seed.CommitSnapshots(ctx, []state.SnapshotEntry{cachedEntry("a", 3)}))
	require.NoError(t, seed.Close())

	lib := &fakeLibrary{}
	lib.set(track("a", 5, now.Add(-time.Hour), time.Minute))
	daemonRemote := &fakeRemote{entered: make(chan struct{}), release: make(chan struct{})}
	manualRemote := &fakeRemote{}
	daemon := newFileService(t, dir, lib, daemonRemote)
	manual := newFileService(t, dir, lib, manualRemote)

	done := make(chan error, 1)
	go func() {
		_, err := daemon.Sync(ctx, Options{})
		done <- err
	}()
	<-daemonRemote.entered

	_, err = manual.Sync(ctx, Options{})
	require.ErrorIs(t, err, ErrSyncInProgress)
	require.ErrorIs(t, manual.ClearCaches(ctx, true, true), ErrSyncInProgress)

	close(daemonRemote.release)
	require.NoError(t, <-done)

	res, err := manual.Sync(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, res.Candidates, "plays already submitted by the other service")

	require.Len(t, daemonRemote.sent(), 1)
	assert.Len(t, daemonRemote.sent()[0], 2)
	assert.Empty(t, manualRemote.sent())
}

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows

package filelock

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock_ExcludesOtherHolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scrobsync.lock")
	a, b := New(path), New(path)

	ok, err := a.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	ok, err = a.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "a held lock is not re-entrant")

	require.NoError(t, a.Unlock())
	ok, err = b.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock())
}

func TestLock_WaitsForRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrobsync.lock")
	a, b := New(path), New(path)
	require.NoError(t, a.Lock())

	acquired := make(chan error, 1)
	go func() { acquired <- b.Lock() }()

	select {
	case <-acquired:
		t.Fatal("Lock returned while another holder had the lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, a.Unlock())
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Lock did not return after release")
	}
	require.NoError(t, b.Unlock())
}

func TestUnlock_Unheld(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "x.lock"))
	assert.NoError(t, l.Unlock())
}

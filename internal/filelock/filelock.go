// Package filelock provides an advisory lock shared between processes
// through a file on disk.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var errHeld = errors.New("filelock: already held by this lock")

// Lock is an exclusive lock on path. The zero value is not usable; use New.
// The lock file itself is created on demand and never removed.
type Lock struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// New returns an unlocked Lock on path.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// TryLock takes the lock without waiting and reports whether it got it.
func (l *Lock) TryLock() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		return false, nil
	}
	f, err := l.open()
	if err != nil {
		return false, err
	}
	ok, err := tryLockFile(f)
	if err != nil || !ok {
		f.Close()
		return false, err
	}
	l.f = f
	return true, nil
}

// Lock blocks until the lock is taken.
func (l *Lock) Lock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		return errHeld
	}
	f, err := l.open()
	if err != nil {
		return err
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return err
	}
	l.f = f
	return nil
}

// Unlock releases the lock. Unlocking an unheld Lock is a no-op.
func (l *Lock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := unlockFile(l.f)
	err = errors.Join(err, l.f.Close())
	l.f = nil
	return err
}

func (l *Lock) open() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return f, nil
}

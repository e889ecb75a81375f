// Package synclog keeps a short, capped history of sync attempts for
// diagnostics. It is stored apart from the main database so it survives a
// cache reset. Several processes may share one log file; every write
// re-reads the file under a lock.
package synclog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/llehouerou/scrobsync/internal/filelock"
)

// Capacity is the number of entries kept; older ones are evicted.
const Capacity = 50

// Outcome is how a sync attempt ended.
type Outcome string

const (
	Succeeded              Outcome = "succeeded"
	Failed                 Outcome = "failed"
	Expired                Outcome = "expired"
	SkippedNoNetwork       Outcome = "skipped_no_network"
	SkippedUnauthenticated Outcome = "skipped_unauthenticated"
)

// Trigger is what started a sync attempt.
type Trigger string

const (
	Manual     Trigger = "manual"
	Background Trigger = "background"
)

// Entry is one recorded attempt.
type Entry struct {
	ID        string    `json:"id"`
	Outcome   Outcome   `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
	Accepted  int       `json:"accepted"`
	Message   string    `json:"message,omitempty"`
	Trigger   Trigger   `json:"trigger"`
}

// Log is a capped, newest-first list of entries persisted as a JSON file.
type Log struct {
	path string
	lock *filelock.Lock

	mu sync.Mutex
	// entries is the last state read from or written to disk.
	entries []Entry
}

// DefaultPath returns the log location under the XDG state directory.
func DefaultPath() (string, error) {
	return xdg.StateFile(filepath.Join("scrobsync", "synclog.json"))
}

// Open loads the log at path. A missing file yields an empty log.
func Open(path string) (*Log, error) {
	l := &Log{path: path, lock: filelock.New(path + ".lock")}
	entries, err := l.read()
	if err != nil {
		return nil, err
	}
	l.entries = entries
	return l, nil
}

// Record prepends an entry to the log as it is on disk and persists it. ID
// and Timestamp are filled in when empty.
func (l *Log) Record(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.lock.Lock(); err != nil {
		return e, fmt.Errorf("lock sync log: %w", err)
	}
	defer l.lock.Unlock() //nolint:errcheck // closing the lock file releases it

	current, err := l.read()
	if err != nil {
		return e, err
	}
	entries := make([]Entry, 0, min(len(current)+1, Capacity))
	entries = append(entries, e)
	entries = append(entries, current...)
	if len(entries) > Capacity {
		entries = entries[:Capacity]
	}
	if err := l.save(entries); err != nil {
		return e, err
	}
	l.entries = entries
	return e, nil
}

// Entries returns the log, newest first. When the file cannot be read the
// last known entries are returned.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refresh()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns the newest entry.
func (l *Log) Last() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refresh()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[0], true
}

// Clear removes every entry.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock sync log: %w", err)
	}
	defer l.lock.Unlock() //nolint:errcheck // closing the lock file releases it

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove sync log: %w", err)
	}
	l.entries = nil
	return nil
}

// refresh reloads entries from disk. Writers replace the file atomically,
// so reading needs no lock.
func (l *Log) refresh() {
	if entries, err := l.read(); err == nil {
		l.entries = entries
	}
}

func (l *Log) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode sync log: %w", err)
	}
	if len(entries) > Capacity {
		entries = entries[:Capacity]
	}
	return entries, nil
}

// save writes through a temp file so a crash never leaves a torn log.
func (l *Log) save(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode sync log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write sync log: %w", err)
	}
	return os.Rename(tmp, l.path)
}

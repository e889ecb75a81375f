package state

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"
)

// Mock is an in-memory test double for Manager.
type Mock struct {
	mu        sync.Mutex
	snapshots map[string]SnapshotEntry
	history   map[string]HistoryEntry
	lastPrune time.Time
	session   *Session
	closed    bool

	// CommitErr, when set, is returned by CommitSnapshots without writing.
	CommitErr error
	// PruneErr, when set, is returned by PruneSnapshots without deleting.
	PruneErr error
	// HistoryErr, when set, is returned by UpsertHistory without writing.
	HistoryErr error

	commits int
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{
		snapshots: make(map[string]SnapshotEntry),
		history:   make(map[string]HistoryEntry),
	}
}

func (m *Mock) DB() *sql.DB { return nil }

func (m *Mock) Snapshots(_ context.Context) (map[string]SnapshotEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]SnapshotEntry, len(m.snapshots))
	for k, v := range m.snapshots {
		out[k] = v
	}
	return out, nil
}

func (m *Mock) SnapshotCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots), nil
}

func (m *Mock) CommitSnapshots(_ context.Context, entries []SnapshotEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CommitErr != nil {
		return m.CommitErr
	}
	for _, e := range entries {
		if e.Artwork == nil {
			e.Artwork = m.snapshots[e.TrackID].Artwork
		}
		m.snapshots[e.TrackID] = e
	}
	m.commits++
	return nil
}

func (m *Mock) PruneSnapshots(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PruneErr != nil {
		return 0, m.PruneErr
	}
	n := 0
	for id, e := range m.snapshots {
		if e.LastSyncedAt.Before(cutoff) {
			delete(m.snapshots, id)
			n++
		}
	}
	return n, nil
}

func (m *Mock) ClearSnapshots(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = make(map[string]SnapshotEntry)
	return nil
}

func (m *Mock) UpsertHistory(_ context.Context, entries []HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HistoryErr != nil {
		return m.HistoryErr
	}
	for _, e := range entries {
		m.history[e.Key()] = e
	}
	return nil
}

func (m *Mock) RecentHistory(_ context.Context, limit int) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HistoryEntry, 0, len(m.history))
	for _, e := range m.history {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScrobbledAt.After(out[j].ScrobbledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Mock) HistoryCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history), nil
}

func (m *Mock) ClearHistory(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = make(map[string]HistoryEntry)
	return nil
}

func (m *Mock) LastPrune(_ context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrune, nil
}

func (m *Mock) SetLastPrune(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrune = t
	return nil
}

func (m *Mock) Session(context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, ErrNoSession
	}
	return *m.session, nil
}

func (m *Mock) SaveSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.LinkedAt.IsZero() {
		s.LinkedAt = time.Now()
	}
	m.session = &s
	return nil
}

func (m *Mock) DeleteSession(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *Mock) Close() error {
	m.closed = true
	return nil
}

// Test helpers

// SetSnapshot seeds the cache with e.
func (m *Mock) SetSnapshot(e SnapshotEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[e.TrackID] = e
}

// Snapshot returns the cached entry for id.
func (m *Mock) Snapshot(id string) (SnapshotEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.snapshots[id]
	return e, ok
}

// Commits returns how many successful CommitSnapshots calls were made.
func (m *Mock) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *Mock) IsClosed() bool { return m.closed }

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)

package state

import (
	"context"
	"database/sql"
	"time"
)

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	DB() *sql.DB

	Snapshots(ctx context.Context) (map[string]SnapshotEntry, error)
	SnapshotCount(ctx context.Context) (int, error)
	CommitSnapshots(ctx context.Context, entries []SnapshotEntry) error
	PruneSnapshots(ctx context.Context, cutoff time.Time) (int, error)
	ClearSnapshots(ctx context.Context) error

	UpsertHistory(ctx context.Context, entries []HistoryEntry) error
	RecentHistory(ctx context.Context, limit int) ([]HistoryEntry, error)
	HistoryCount(ctx context.Context) (int, error)
	ClearHistory(ctx context.Context) error

	LastPrune(ctx context.Context) (time.Time, error)
	SetLastPrune(ctx context.Context, t time.Time) error

	Session(ctx context.Context) (Session, error)
	SaveSession(ctx context.Context, s Session) error
	DeleteSession(ctx context.Context) error

	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)

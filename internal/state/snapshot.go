package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/llehouerou/scrobsync/internal/db"
)

// SnapshotEntry is the last observed play state of one library track.
type SnapshotEntry struct {
	TrackID      string
	Title        string
	Artist       string
	Album        string
	Artwork      []byte
	Duration     time.Duration
	PlayCount    int
	LastPlayed   time.Time
	LastSyncedAt time.Time
}

// Snapshots returns every cached entry keyed by track id.
func (m *Manager) Snapshots(ctx context.Context) (map[string]SnapshotEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT track_id, title, artist, album, artwork, duration_ms,
		       play_count, last_played_at, last_synced_at
		FROM snapshot_cache
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[string]SnapshotEntry)
	for rows.Next() {
		var e SnapshotEntry
		var album sql.NullString
		var durationMs int64
		var lastPlayed sql.NullInt64
		var lastSynced int64

		err := rows.Scan(
			&e.TrackID, &e.Title, &e.Artist, &album, &e.Artwork, &durationMs,
			&e.PlayCount, &lastPlayed, &lastSynced,
		)
		if err != nil {
			return nil, err
		}

		e.Album = db.NullStringValue(album)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.LastPlayed = db.NullUnixTime(lastPlayed)
		e.LastSyncedAt = time.Unix(lastSynced, 0)
		entries[e.TrackID] = e
	}

	return entries, rows.Err()
}

// SnapshotCount returns the number of cached entries.
func (m *Manager) SnapshotCount(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshot_cache`).Scan(&n)
	return n, err
}

// CommitSnapshots upserts entries in a single transaction: either all of them
// are written or none are.
func (m *Manager) CommitSnapshots(ctx context.Context, entries []SnapshotEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO snapshot_cache
			(track_id, title, artist, album, artwork, duration_ms, play_count, last_played_at, last_synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(track_id) DO UPDATE SET
				title = excluded.title,
				artist = excluded.artist,
				album = excluded.album,
				artwork = COALESCE(excluded.artwork, snapshot_cache.artwork),
				duration_ms = excluded.duration_ms,
				play_count = excluded.play_count,
				last_played_at = excluded.last_played_at,
				last_synced_at = excluded.last_synced_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range entries {
			e := &entries[i]
			_, err := stmt.ExecContext(ctx,
				e.TrackID, e.Title, e.Artist, e.Album, e.Artwork,
				e.Duration.Milliseconds(), e.PlayCount,
				db.UnixOrNull(e.LastPlayed), e.LastSyncedAt.Unix(),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// PruneSnapshots deletes entries last synced before cutoff and returns how
// many were removed.
func (m *Manager) PruneSnapshots(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM snapshot_cache WHERE last_synced_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ClearSnapshots removes every cached entry. The next sync becomes a
// first sync again.
func (m *Manager) ClearSnapshots(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM snapshot_cache`)
	return err
}

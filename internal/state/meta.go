package state

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const metaLastPrune = "last_prune_at"

// LastPrune returns when the snapshot cache was last pruned, or the zero
// time if it never was.
func (m *Manager) LastPrune(ctx context.Context) (time.Time, error) {
	var ts int64
	err := m.db.QueryRowContext(ctx,
		`SELECT value FROM sync_meta WHERE key = ?`, metaLastPrune).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}

// SetLastPrune records the time of the latest prune run.
func (m *Manager) SetLastPrune(ctx context.Context, t time.Time) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaLastPrune, t.Unix())
	return err
}

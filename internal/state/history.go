package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/llehouerou/scrobsync/internal/db"
)

// HistoryEntry is one mirrored remote scrobble.
type HistoryEntry struct {
	Title       string
	Artist      string
	Album       string
	ScrobbledAt time.Time
	ImageURL    string
	URL         string
}

// Key identifies a scrobble on the remote log. Two fetches of the same play
// always produce the same key.
func (e HistoryEntry) Key() string {
	return fmt.Sprintf("%s-%s-%d", e.Artist, e.Title, e.ScrobbledAt.Unix())
}

// UpsertHistory inserts new entries and refreshes the mutable fields of
// existing ones. Entries missing from the input are left untouched.
func (m *Manager) UpsertHistory(ctx context.Context, entries []HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO history_mirror (scrobble_id, title, artist, album, scrobbled_at, image_url, url)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(scrobble_id) DO UPDATE SET
				album = excluded.album,
				image_url = excluded.image_url,
				url = excluded.url
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entries {
			_, err := stmt.ExecContext(ctx,
				e.Key(), e.Title, e.Artist, e.Album, e.ScrobbledAt.Unix(), e.ImageURL, e.URL)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// RecentHistory returns up to limit mirrored scrobbles, newest first.
func (m *Manager) RecentHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT title, artist, album, scrobbled_at, image_url, url
		FROM history_mirror
		ORDER BY scrobbled_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var album, imageURL, url sql.NullString
		var scrobbledAt int64

		if err := rows.Scan(&e.Title, &e.Artist, &album, &scrobbledAt, &imageURL, &url); err != nil {
			return nil, err
		}

		e.Album = album.String
		e.ImageURL = imageURL.String
		e.URL = url.String
		e.ScrobbledAt = time.Unix(scrobbledAt, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// HistoryCount returns the number of mirrored scrobbles.
func (m *Manager) HistoryCount(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history_mirror`).Scan(&n)
	return n, err
}

// ClearHistory removes every mirrored scrobble.
func (m *Manager) ClearHistory(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM history_mirror`)
	return err
}

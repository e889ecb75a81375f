package scrobble

import (
	"context"

	"github.com/llehouerou/scrobsync/internal/lastfm"
	"github.com/llehouerou/scrobsync/internal/metrics"
	"github.com/llehouerou/scrobsync/internal/state"
)

const DefaultHistoryLimit = 50

// RecentFetcher reads the remote scrobble log.
type RecentFetcher interface {
	RecentTracks(ctx context.Context, limit int) ([]lastfm.RecentTrack, error)
}

// HistoryStore persists mirrored scrobbles.
type HistoryStore interface {
	UpsertHistory(ctx context.Context, entries []state.HistoryEntry) error
}

// Mirror copies the newest remote scrobbles into the local history table.
type Mirror struct {
	remote RecentFetcher
	store  HistoryStore
	limit  int
}

// NewMirror creates a Mirror fetching limit entries per refresh, capped at
// lastfm.MaxRecentLimit.
func NewMirror(remote RecentFetcher, store HistoryStore, limit int) *Mirror {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, lastfm.MaxRecentLimit)
	return &Mirror{remote: remote, store: store, limit: limit}
}

// Refresh fetches one page and upserts it. The currently playing entry has
// no timestamp yet and is skipped. Entries are never deleted.
func (m *Mirror) Refresh(ctx context.Context) (int, error) {
	recent, err := m.remote.RecentTracks(ctx, m.limit)
	if err != nil {
		return 0, err
	}

	entries := make([]state.HistoryEntry, 0, len(recent))
	for _, r := range recent {
		if r.NowPlaying || r.ScrobbledAt.IsZero() {
			continue
		}
		entries = append(entries, state.HistoryEntry{
			Title:       r.Title,
			Artist:      r.Artist,
			Album:       r.Album,
			ScrobbledAt: r.ScrobbledAt,
			ImageURL:    r.ImageURL,
			URL:         r.URL,
		})
	}

	if err := m.store.UpsertHistory(ctx, entries); err != nil {
		return 0, err
	}
	metrics.HistoryUpserts.Add(float64(len(entries)))
	return len(entries), nil
}

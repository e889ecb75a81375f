package scrobble

import (
	"time"

	"github.com/llehouerou/scrobsync/internal/library"
	"github.com/llehouerou/scrobsync/internal/state"
)

// DefaultLookback matches how far back Last.fm accepts scrobbles.
const DefaultLookback = 14 * 24 * time.Hour

// Play is a detected play awaiting submission.
type Play struct {
	TrackID   string
	Title     string
	Artist    string
	Album     string
	Duration  time.Duration
	Timestamp time.Time
}

// Pending holds one track's detected plays and the cache entry to commit
// once they have been submitted.
type Pending struct {
	Entry state.SnapshotEntry
	// Plays are most recent first.
	Plays []Play
}

// oldest returns the earliest play time of the group.
func (p Pending) oldest() time.Time {
	return p.Plays[len(p.Plays)-1].Timestamp
}

// Diff is the outcome of comparing a library snapshot with the cache.
type Diff struct {
	Pending []Pending
	// Baseline entries carry no plays and can be committed unconditionally.
	Baseline []state.SnapshotEntry
	// FirstSync is set when the cache was empty before this pass.
	FirstSync bool
}

// PlayCount returns the number of detected plays.
func (d Diff) PlayCount() int {
	n := 0
	for _, p := range d.Pending {
		n += len(p.Plays)
	}
	return n
}

// Detect compares tracks against cached entries.
//
// A track missing from the cache gets a baseline entry and, unless this is
// the first sync ever, a single play at its last-played time when that falls
// within lookback. A cached track emits one play per count increase; a
// decrease only rebases the cached count.
func Detect(tracks []library.Track, cached map[string]state.SnapshotEntry, now time.Time, lookback time.Duration) Diff {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	d := Diff{FirstSync: len(cached) == 0}

	for _, t := range tracks {
		entry := entryFor(t, now)
		prev, seen := cached[t.ID]

		if !seen {
			if !d.FirstSync && t.PlayCount > 0 && !t.LastPlayed.IsZero() &&
				now.Sub(t.LastPlayed) <= lookback {
				d.Pending = append(d.Pending, Pending{
					Entry: entry,
					Plays: []Play{playOf(t, t.LastPlayed)},
				})
				continue
			}
			d.Baseline = append(d.Baseline, entry)
			continue
		}

		delta := t.PlayCount - prev.PlayCount
		switch {
		case delta < 0:
			// The source reset its counter; adopt the new count silently.
			d.Baseline = append(d.Baseline, entry)
		case delta == 0:
			// Unchanged tracks are not rewritten and age out via pruning.
		case t.LastPlayed.IsZero():
			d.Baseline = append(d.Baseline, entry)
		default:
			stamps := EstimateTimestamps(t.LastPlayed, delta, t.Duration)
			plays := make([]Play, len(stamps))
			for i, ts := range stamps {
				plays[i] = playOf(t, ts)
			}
			d.Pending = append(d.Pending, Pending{Entry: entry, Plays: plays})
		}
	}
	return d
}

func entryFor(t library.Track, now time.Time) state.SnapshotEntry {
	return state.SnapshotEntry{
		TrackID:      t.ID,
		Title:        t.Title,
		Artist:       t.Artist,
		Album:        t.Album,
		Duration:     t.Duration,
		PlayCount:    t.PlayCount,
		LastPlayed:   t.LastPlayed,
		LastSyncedAt: now,
	}
}

func playOf(t library.Track, ts time.Time) Play {
	return Play{
		TrackID:   t.ID,
		Title:     t.Title,
		Artist:    t.Artist,
		Album:     t.Album,
		Duration:  t.Duration,
		Timestamp: ts,
	}
}

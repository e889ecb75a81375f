package scrobble

import (
	"testing"
	"time"

	"github.com/llehouerou/scrobsync/internal/library"
	"github.com/llehouerou/scrobsync/internal/state"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func track(id string, count int, lastPlayed time.Time, dur time.Duration) library.Track {
	return library.Track{
		ID: id, Title: "Title " + id, Artist: "Artist", Album: "Album",
		PlayCount: count, LastPlayed: lastPlayed, Duration: dur,
	}
}

func cachedEntry(id string, count int) state.SnapshotEntry {
	return state.SnapshotEntry{
		TrackID: id, Title: "Title " + id, Artist: "Artist",
		PlayCount: count, LastSyncedAt: now.Add(-time.Hour),
	}
}

func TestDetect_FirstSyncEmitsNothing(t *testing.T) {
	tracks := []library.Track{
		track("a", 10, now.Add(-time.Hour), time.Minute),
		track("b", 1, now.Add(-24*time.Hour), time.Minute),
		track("c", 0, time.Time{}, 0),
	}

	d := Detect(tracks, nil, now, DefaultLookback)

	if !d.FirstSync {
		t.Error("expected FirstSync")
	}
	if d.PlayCount() != 0 {
		t.Errorf("PlayCount = %d, want 0", d.PlayCount())
	}
	if len(d.Baseline) != 3 {
		t.Errorf("Baseline = %d entries, want 3", len(d.Baseline))
	}
	for _, e := range d.Baseline {
		if !e.LastSyncedAt.Equal(now) {
			t.Errorf("LastSyncedAt = %v, want %v", e.LastSyncedAt, now)
		}
	}
}

func TestDetect_NewTrackWithinLookback(t *testing.T) {
	cached := map[string]state.SnapshotEntry{"x": cachedEntry("x", 1)}
	played := now.Add(-3 * 24 * time.Hour)

	d := Detect([]library.Track{track("new", 4, played, time.Minute)}, cached, now, DefaultLookback)

	if len(d.Pending) != 1 {
		t.Fatalf("Pending = %d, want 1", len(d.Pending))
	}
	plays := d.Pending[0].Plays
	if len(plays) != 1 || !plays[0].Timestamp.Equal(played) {
		t.Errorf("plays = %+v, want one at %v", plays, played)
	}
	if d.Pending[0].Entry.PlayCount != 4 {
		t.Errorf("entry count = %d, want 4", d.Pending[0].Entry.PlayCount)
	}
}

func TestDetect_NewTrackOutsideLookbackOrUnplayed(t *testing.T) {
	cached := map[string]state.SnapshotEntry{"x": cachedEntry("x", 1)}
	tracks := []library.Track{
		track("old", 4, now.Add(-15*24*time.Hour), time.Minute),
		track("unplayed", 0, time.Time{}, time.Minute),
		track("nodate", 2, time.Time{}, time.Minute),
	}

	d := Detect(tracks, cached, now, DefaultLookback)

	if d.PlayCount() != 0 {
		t.Errorf("PlayCount = %d, want 0", d.PlayCount())
	}
	if len(d.Baseline) != 3 {
		t.Errorf("Baseline = %d, want 3", len(d.Baseline))
	}
}

func TestDetect_DeltaEmitsEstimatedPlays(t *testing.T) {
	cached := map[string]state.SnapshotEntry{"a": cachedEntry("a", 3)}
	last := now.Add(-time.Hour)

	d := Detect([]library.Track{track("a", 5, last, 200*time.Second)}, cached, now, DefaultLookback)

	if len(d.Pending) != 1 {
		t.Fatalf("Pending = %d, want 1", len(d.Pending))
	}
	plays := d.Pending[0].Plays
	if len(plays) != 2 {
		t.Fatalf("plays = %d, want 2", len(plays))
	}
	if !plays[0].Timestamp.Equal(last) || !plays[1].Timestamp.Equal(last.Add(-200*time.Second)) {
		t.Errorf("timestamps = %v, %v", plays[0].Timestamp, plays[1].Timestamp)
	}
	entry := d.Pending[0].Entry
	if entry.PlayCount != 5 || !entry.LastPlayed.Equal(last) {
		t.Errorf("entry = %+v", entry)
	}
}

func TestDetect_NoIncreaseEmitsNothing(t *testing.T) {
	cached := map[string]state.SnapshotEntry{
		"same":  cachedEntry("same", 3),
		"lower": cachedEntry("lower", 9),
	}
	tracks := []library.Track{
		track("same", 3, now.Add(-time.Hour), time.Minute),
		track("lower", 2, now.Add(-time.Hour), time.Minute),
	}

	d := Detect(tracks, cached, now, DefaultLookback)

	if d.PlayCount() != 0 {
		t.Errorf("PlayCount = %d, want 0", d.PlayCount())
	}
	if len(d.Baseline) != 1 || d.Baseline[0].TrackID != "lower" || d.Baseline[0].PlayCount != 2 {
		t.Errorf("Baseline = %+v, want rebased 'lower'", d.Baseline)
	}
}

func TestDetect_IncreaseWithoutLastPlayed(t *testing.T) {
	cached := map[string]state.SnapshotEntry{"a": cachedEntry("a", 1)}

	d := Detect([]library.Track{track("a", 2, time.Time{}, time.Minute)}, cached, now, DefaultLookback)

	if d.PlayCount() != 0 {
		t.Errorf("PlayCount = %d, want 0", d.PlayCount())
	}
	if len(d.Baseline) != 1 {
		t.Errorf("Baseline = %d, want 1", len(d.Baseline))
	}
}

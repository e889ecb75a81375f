package scrobble

import "time"

// DefaultTrackDuration spaces estimated plays when a track's length is unknown.
const DefaultTrackDuration = 180 * time.Second

// EstimateTimestamps returns n play times for a track whose latest play was
// at lastPlayed, most recent first, assuming back-to-back replays:
// lastPlayed - i*duration for i in 0..n-1.
func EstimateTimestamps(lastPlayed time.Time, n int, duration time.Duration) []time.Time {
	if n <= 0 {
		return nil
	}
	if duration <= 0 {
		duration = DefaultTrackDuration
	}
	out := make([]time.Time, n)
	for i := range out {
		out[i] = lastPlayed.Add(-time.Duration(i) * duration)
	}
	return out
}

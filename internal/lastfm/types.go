package lastfm

import (
	"strconv"
	"strings"
	"time"
)

// ScrobbleTrack contains track metadata for scrobbling.
type ScrobbleTrack struct {
	Artist    string
	Track     string
	Album     string
	Duration  time.Duration
	Timestamp time.Time // When playback started
}

// ScrobbleResult is the aggregate outcome of one batch submission.
// Last.fm does not say which individual items were ignored.
type ScrobbleResult struct {
	Accepted int
	Ignored  int
}

// RecentTrack is one entry of the user's recent-tracks log.
type RecentTrack struct {
	Title  string
	Artist string
	Album  string
	// ScrobbledAt is zero for the currently playing entry.
	ScrobbledAt time.Time
	NowPlaying  bool
	ImageURL    string
	URL         string
}

// flexInt decodes a JSON number or a numeric string. Last.fm uses both for
// the same fields depending on the endpoint.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

package lastfm

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const defaultRecentLimit = 50

// Image sizes from smallest to largest.
var imageSizeRank = map[string]int{
	"small":      1,
	"medium":     2,
	"large":      3,
	"extralarge": 4,
	"mega":       5,
}

type textField struct {
	Text string `json:"#text"`
}

type imageField struct {
	Size string `json:"size"`
	URL  string `json:"#text"`
}

type recentTrackJSON struct {
	Name   string       `json:"name"`
	URL    string       `json:"url"`
	Artist textField    `json:"artist"`
	Album  textField    `json:"album"`
	Image  []imageField `json:"image"`
	Date   *struct {
		UTS flexInt `json:"uts"`
	} `json:"date"`
	Attr struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

// trackList accepts both an array and a lone object, which Last.fm returns
// when the page holds a single track.
type trackList []recentTrackJSON

func (l *trackList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var one recentTrackJSON
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*l = trackList{one}
		return nil
	}
	var many []recentTrackJSON
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

type recentTracksResponse struct {
	RecentTracks struct {
		Track trackList `json:"track"`
	} `json:"recenttracks"`
}

// RecentTracks fetches the newest entries of the linked user's scrobble log,
// newest first. limit is clamped to 1..MaxRecentLimit, 0 means 50.
func (c *Client) RecentTracks(ctx context.Context, limit int) ([]RecentTrack, error) {
	user := c.Username()
	if user == "" || !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)

	params := url.Values{}
	params.Set("user", user)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "user.getrecenttracks", params)
	if err != nil {
		return nil, fmt.Errorf("get recent tracks: %w", err)
	}

	var resp recentTracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("get recent tracks: decode response: %w", err)
	}

	tracks := make([]RecentTrack, 0, len(resp.RecentTracks.Track))
	for _, t := range resp.RecentTracks.Track {
		rt := RecentTrack{
			Title:      t.Name,
			Artist:     t.Artist.Text,
			Album:      t.Album.Text,
			NowPlaying: t.Attr.NowPlaying == "true",
			ImageURL:   largestImage(t.Image),
			URL:        t.URL,
		}
		if t.Date != nil && t.Date.UTS > 0 {
			rt.ScrobbledAt = time.Unix(int64(t.Date.UTS), 0)
		}
		tracks = append(tracks, rt)
	}
	return tracks, nil
}

func largestImage(images []imageField) string {
	best, bestRank := "", 0
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		rank := imageSizeRank[img.Size]
		if best == "" || rank > bestRank {
			best, bestRank = img.URL, rank
		}
	}
	return best
}

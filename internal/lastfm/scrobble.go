package lastfm

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
)

type scrobbleResponse struct {
	Scrobbles struct {
		Attr struct {
			Accepted flexInt `json:"accepted"`
			Ignored  flexInt `json:"ignored"`
		} `json:"@attr"`
	} `json:"scrobbles"`
}

// ScrobbleBatch submits up to MaxBatchSize plays in a single call. Extra
// tracks are not sent; callers are expected to batch.
func (c *Client) ScrobbleBatch(ctx context.Context, tracks []ScrobbleTrack) (ScrobbleResult, error) {
	if !c.IsAuthenticated() {
		return ScrobbleResult{}, ErrNotAuthenticated
	}
	if len(tracks) == 0 {
		return ScrobbleResult{}, nil
	}
	if len(tracks) > MaxBatchSize {
		tracks = tracks[:MaxBatchSize] // Last.fm limit
	}

	params := url.Values{}
	for i, t := range tracks {
		idx := strconv.Itoa(i)
		params.Set("artist["+idx+"]", t.Artist)
		params.Set("track["+idx+"]", t.Track)
		params.Set("timestamp["+idx+"]", strconv.FormatInt(t.Timestamp.Unix(), 10))
		if t.Album != "" {
			params.Set("album["+idx+"]", t.Album)
		}
		if t.Duration > 0 {
			params.Set("duration["+idx+"]", strconv.Itoa(int(t.Duration.Seconds())))
		}
	}

	body, err := c.post(ctx, "track.scrobble", params)
	if err != nil {
		return ScrobbleResult{}, fmt.Errorf("batch scrobble: %w", err)
	}

	var resp scrobbleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ScrobbleResult{}, fmt.Errorf("batch scrobble: decode response: %w", err)
	}

	return ScrobbleResult{
		Accepted: int(resp.Scrobbles.Attr.Accepted),
		Ignored:  int(resp.Scrobbles.Attr.Ignored),
	}, nil
}

package library

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"howett.net/plist"
)

// ITunesSource reads an iTunes / Music "Library.xml" export.
type ITunesSource struct {
	path string
}

// NewITunesSource creates a source reading the library export at path.
func NewITunesSource(path string) *ITunesSource {
	return &ITunesSource{path: path}
}

type itunesLibrary struct {
	Tracks map[string]itunesTrack `plist:"Tracks"`
}

type itunesTrack struct {
	TrackID      int       `plist:"Track ID"`
	PersistentID string    `plist:"Persistent ID"`
	Name         string    `plist:"Name"`
	Artist       string    `plist:"Artist"`
	Album        string    `plist:"Album"`
	TotalTime    int64     `plist:"Total Time"`
	PlayCount    int       `plist:"Play Count"`
	PlayDateUTC  time.Time `plist:"Play Date UTC"`
	Location     string    `plist:"Location"`
	Podcast      bool      `plist:"Podcast"`
	Movie        bool      `plist:"Movie"`
	TVShow       bool      `plist:"TV Show"`
	HasVideo     bool      `plist:"Has Video"`
}

// Authorized reports whether the export file is readable.
func (s *ITunesSource) Authorized(_ context.Context) bool {
	f, err := os.Open(s.path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Snapshot parses the export and returns its music tracks.
func (s *ITunesSource) Snapshot(ctx context.Context) ([]Track, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsPermission(err) || os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %w", ErrNotAuthorized, err)
		}
		return nil, err
	}
	defer f.Close()

	var lib itunesLibrary
	if err := plist.NewDecoder(f).Decode(&lib); err != nil {
		return nil, fmt.Errorf("parse itunes library: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(lib.Tracks))
	for _, it := range lib.Tracks {
		if it.Podcast || it.Movie || it.TVShow || it.HasVideo {
			continue
		}
		t := Track{
			ID:         it.PersistentID,
			Title:      it.Name,
			Artist:     it.Artist,
			Album:      it.Album,
			Duration:   time.Duration(it.TotalTime) * time.Millisecond,
			PlayCount:  it.PlayCount,
			LastPlayed: it.PlayDateUTC,
			Path:       decodeLocation(it.Location),
		}
		if t.ID == "" && it.TrackID != 0 {
			t.ID = fmt.Sprintf("track-%d", it.TrackID)
		}
		if !t.Scrobbleable() {
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// decodeLocation turns a "file://localhost/..." location into a local path.
func decodeLocation(loc string) string {
	if loc == "" {
		return ""
	}
	u, err := url.Parse(loc)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	p := u.Path
	// Windows libraries store file://localhost/C:/...
	if len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return strings.TrimSpace(p)
}

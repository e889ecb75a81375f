package library

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

const (
	DefaultPlayCountSticker  = "playcount"
	DefaultLastPlayedSticker = "lastplayed"
)

// mpdConn is the subset of *mpd.Client used to build snapshots.
type mpdConn interface {
	ListAllInfo(uri string) ([]mpd.Attrs, error)
	StickerFind(uri string, name string) ([]string, []mpd.Sticker, error)
	Ping() error
	Close() error
}

// MPDConfig configures an MPDSource.
type MPDConfig struct {
	Addr     string
	Password string
	// MusicDir is MPD's music_directory, used to resolve file paths.
	MusicDir          string
	PlayCountSticker  string
	LastPlayedSticker string
}

// MPDSource reads play statistics that a sticker-aware client (mpdscribble,
// a player plugin) stores on MPD songs.
type MPDSource struct {
	cfg  MPDConfig
	dial func() (mpdConn, error)
}

// NewMPDSource creates a source connecting to MPD at cfg.Addr.
func NewMPDSource(cfg MPDConfig) *MPDSource {
	if cfg.PlayCountSticker == "" {
		cfg.PlayCountSticker = DefaultPlayCountSticker
	}
	if cfg.LastPlayedSticker == "" {
		cfg.LastPlayedSticker = DefaultLastPlayedSticker
	}
	s := &MPDSource{cfg: cfg}
	s.dial = func() (mpdConn, error) {
		c, err := mpd.DialAuthenticated("tcp", cfg.Addr, cfg.Password)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return s
}

// Authorized reports whether MPD accepts our connection.
func (s *MPDSource) Authorized(ctx context.Context) bool {
	err := s.withConn(ctx, func(conn mpdConn) error {
		return conn.Ping()
	})
	return err == nil
}

// Snapshot lists every song and joins it with its play-count stickers.
func (s *MPDSource) Snapshot(ctx context.Context) ([]Track, error) {
	var tracks []Track
	err := s.withConn(ctx, func(conn mpdConn) error {
		attrs, err := conn.ListAllInfo("/")
		if err != nil {
			return fmt.Errorf("list songs: %w", err)
		}

		// MPD expects "" for the root when searching stickers
		counts, err := stickerValues(conn, s.cfg.PlayCountSticker)
		if err != nil {
			return fmt.Errorf("find %s stickers: %w", s.cfg.PlayCountSticker, err)
		}
		played, err := stickerValues(conn, s.cfg.LastPlayedSticker)
		if err != nil {
			return fmt.Errorf("find %s stickers: %w", s.cfg.LastPlayedSticker, err)
		}

		tracks = s.buildTracks(attrs, counts, played)
		return nil
	})
	return tracks, err
}

func (s *MPDSource) buildTracks(attrs []mpd.Attrs, counts, played map[string]string) []Track {
	tracks := make([]Track, 0, len(attrs))
	for _, a := range attrs {
		file := a["file"]
		if file == "" {
			continue // directory or playlist entry
		}
		t := Track{
			ID:       file,
			Title:    a["Title"],
			Artist:   a["Artist"],
			Album:    a["Album"],
			Duration: songDuration(a),
		}
		if s.cfg.MusicDir != "" {
			t.Path = filepath.Join(s.cfg.MusicDir, filepath.FromSlash(file))
		}
		if v, ok := counts[file]; ok {
			t.PlayCount, _ = strconv.Atoi(v)
		}
		if v, ok := played[file]; ok {
			if ts, err := strconv.ParseInt(v, 10, 64); err == nil && ts > 0 {
				t.LastPlayed = time.Unix(ts, 0)
			}
		}
		if !t.Scrobbleable() {
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks
}

func (s *MPDSource) withConn(ctx context.Context, fn func(conn mpdConn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := s.dial()
	if err != nil {
		return fmt.Errorf("%w: connect to mpd: %w", ErrNotAuthorized, err)
	}
	defer conn.Close()

	// gompd has no context support; abandon the result if ctx ends first.
	done := make(chan error, 1)
	go func() { done <- fn(conn) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func stickerValues(conn mpdConn, name string) (map[string]string, error) {
	uris, stickers, err := conn.StickerFind("", name)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(uris))
	for i, uri := range uris {
		if i < len(stickers) {
			values[uri] = stickers[i].Value
		}
	}
	return values, nil
}

// songDuration prefers the fractional "duration" tag over the legacy "Time".
func songDuration(a mpd.Attrs) time.Duration {
	if v, ok := a["duration"]; ok {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	if v, ok := a["Time"]; ok {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

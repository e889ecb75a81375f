// Package library reads play statistics from a local media library.
package library

import (
	"context"
	"errors"
	"time"
)

// ErrNotAuthorized is returned when the library cannot be accessed.
var ErrNotAuthorized = errors.New("media library access not authorized")

// Track is one library item with its play statistics.
type Track struct {
	// ID is stable across snapshots of the same library.
	ID         string
	Title      string
	Artist     string
	Album      string
	Duration   time.Duration
	PlayCount  int
	LastPlayed time.Time
	// Path is the audio file on disk, empty when unknown.
	Path string
}

// Source provides snapshots of the library.
type Source interface {
	// Snapshot returns every scrobbleable track with its current statistics.
	Snapshot(ctx context.Context) ([]Track, error)
	// Authorized reports whether the library can currently be read.
	Authorized(ctx context.Context) bool
}

// Scrobbleable reports whether t has the metadata the remote service requires.
func (t Track) Scrobbleable() bool {
	return t.ID != "" && t.Title != "" && t.Artist != ""
}

package scrobble

import "errors"

var (
	// ErrSyncInProgress is returned when a pass is already running. The
	// rejected call has no effect.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNotReady is returned when the engine is used before its
	// collaborators were provided.
	ErrNotReady = errors.New("sync engine not ready")
)

// Package daemon supervises the long-running services of `scrobsync daemon`.
package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tuning. Zero values take suture's defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns the defaults used by the daemon command.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the supervisor hierarchy:
//   - sync: the wake-up host driving background passes
//   - aux: notifications and the metrics endpoint
//
// A crashing auxiliary service never interrupts background syncing.
type Tree struct {
	root *suture.Supervisor
	sync *suture.Supervisor
	aux  *suture.Supervisor
}

// NewTree builds the supervisor tree. Supervisor events are logged through
// logger.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	handler := &sutureslog.Handler{Logger: logger}

	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = handler.MustHook()

	root := suture.New("scrobsync", rootSpec)
	syncLayer := suture.New("sync-layer", spec)
	aux := suture.New("aux-layer", spec)
	root.Add(syncLayer)
	root.Add(aux)

	return &Tree{root: root, sync: syncLayer, aux: aux}
}

// AddSyncService adds a service that drives sync passes.
func (t *Tree) AddSyncService(svc suture.Service) suture.ServiceToken {
	return t.sync.Add(svc)
}

// AddAuxService adds a service whose failure must not affect syncing.
func (t *Tree) AddAuxService(svc suture.Service) suture.ServiceToken {
	return t.aux.Add(svc)
}

// Serve blocks until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

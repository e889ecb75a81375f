package scrobble

import (
	"context"
	"time"

	"github.com/llehouerou/scrobsync/internal/metrics"
)

const (
	DefaultRetention     = 30 * 24 * time.Hour
	DefaultPruneInterval = 6 * time.Hour
)

// PruneStore is the storage the Pruner needs.
type PruneStore interface {
	PruneSnapshots(ctx context.Context, cutoff time.Time) (int, error)
	LastPrune(ctx context.Context) (time.Time, error)
	SetLastPrune(ctx context.Context, t time.Time) error
}

// Pruner evicts snapshot entries not synced within the retention window.
type Pruner struct {
	store     PruneStore
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewPruner creates a Pruner. Zero durations take the defaults.
func NewPruner(store PruneStore, retention, interval time.Duration) *Pruner {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	return &Pruner{store: store, retention: retention, interval: interval, now: time.Now}
}

// Run prunes unless the previous run was less than the interval ago.
// It returns the number of entries removed and whether a prune happened.
func (p *Pruner) Run(ctx context.Context) (int, bool, error) {
	now := p.now()
	last, err := p.store.LastPrune(ctx)
	if err != nil {
		return 0, false, err
	}
	if !last.IsZero() && now.Sub(last) < p.interval {
		return 0, false, nil
	}

	n, err := p.store.PruneSnapshots(ctx, now.Add(-p.retention))
	if err != nil {
		return 0, false, err
	}
	metrics.SnapshotsPruned.Add(float64(n))
	return n, true, p.store.SetLastPrune(ctx, now)
}

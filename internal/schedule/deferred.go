package schedule

import (
	"sync"

	"github.com/llehouerou/scrobsync/internal/scrobble"
)

// Deferred holds a value that becomes available after construction.
type Deferred[T any] struct {
	mu  sync.RWMutex
	v   T
	set bool
}

// Set makes v available to Get.
func (d *Deferred[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.v = v
	d.set = true
}

// Get returns the value, or scrobble.ErrNotReady if Set was not called yet.
func (d *Deferred[T]) Get() (T, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.set {
		var zero T
		return zero, scrobble.ErrNotReady
	}
	return d.v, nil
}

//go:build !linux

package notify

// New returns Discard; desktop notifications are only wired on Linux.
func New(string) (Notifier, error) {
	return Discard, nil
}

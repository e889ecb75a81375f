package schedule

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultProbeAddr is the Last.fm scrobble endpoint.
const DefaultProbeAddr = "ws.audioscrobbler.com:443"

// Prober checks that the network is usable.
type Prober interface {
	Probe(ctx context.Context) error
}

// DialProber opens a TCP connection to Addr.
type DialProber struct {
	Addr    string
	Timeout time.Duration
}

func (p DialProber) Probe(ctx context.Context) error {
	addr := p.Addr
	if addr == "" {
		addr = DefaultProbeAddr
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("probe %s: %w", addr, err)
	}
	return conn.Close()
}

// Package metrics exposes Prometheus instruments for the sync engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SyncPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobsync_sync_passes_total",
			Help: "Sync passes by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrobsync_sync_duration_seconds",
			Help:    "Duration of the critical sync path in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CandidatePlays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrobsync_candidate_plays_total",
			Help: "Plays detected by diffing the library against the snapshot cache",
		},
	)

	ScrobblesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobsync_scrobbles_total",
			Help: "Scrobbles reported by Last.fm, by result",
		},
		[]string{"result"}, // "accepted", "ignored"
	)

	SnapshotsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrobsync_snapshots_pruned_total",
			Help: "Snapshot cache entries evicted by the pruner",
		},
	)

	HistoryUpserts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrobsync_history_upserts_total",
			Help: "Remote log entries written to the history mirror",
		},
	)

	BackgroundRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobsync_background_runs_total",
			Help: "Background wake-ups by outcome",
		},
		[]string{"outcome"},
	)
)

// Server serves /metrics. It implements suture.Service.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Serve runs until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) String() string { return "metrics" }

package scrobble

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/llehouerou/scrobsync/internal/lastfm"
	"github.com/llehouerou/scrobsync/internal/state"
)

// Scrobbler submits a batch of plays in one call.
type Scrobbler interface {
	ScrobbleBatch(ctx context.Context, tracks []lastfm.ScrobbleTrack) (lastfm.ScrobbleResult, error)
}

// SnapshotCommitter persists cache entries atomically.
type SnapshotCommitter interface {
	CommitSnapshots(ctx context.Context, entries []state.SnapshotEntry) error
}

// SubmitResult summarizes one submission.
type SubmitResult struct {
	Accepted int
	Ignored  int
	// Submitted is the number of plays sent.
	Submitted int
	// Deferred plays did not fit the batch and wait for the next pass.
	Deferred int
}

// Submitter sends the first batch of a diff and commits the cache for the
// tracks it covered.
type Submitter struct {
	remote    Scrobbler
	store     SnapshotCommitter
	batchSize int
	log       zerolog.Logger
}

// NewSubmitter creates a Submitter. batchSize is capped at lastfm.MaxBatchSize.
func NewSubmitter(remote Scrobbler, store SnapshotCommitter, batchSize int, log zerolog.Logger) *Submitter {
	if batchSize <= 0 || batchSize > lastfm.MaxBatchSize {
		batchSize = lastfm.MaxBatchSize
	}
	return &Submitter{remote: remote, store: store, batchSize: batchSize, log: log}
}

// Submit sends at most one batch. A track's plays always travel together;
// tracks whose oldest play is furthest in the past go first since they are
// closest to falling out of the acceptance window.
//
// Cache entries are written only after the remote call returns. When it
// fails, only entries without plays are written so the same plays are
// detected again next pass. The service reports aggregate counts, so once
// the call succeeds every track in the batch is committed, including any
// play Last.fm ignored.
func (s *Submitter) Submit(ctx context.Context, d Diff) (SubmitResult, error) {
	batch, covered, deferred := s.plan(d.Pending)
	res := SubmitResult{Submitted: len(batch), Deferred: deferred}

	if len(batch) == 0 {
		if err := s.store.CommitSnapshots(ctx, d.Baseline); err != nil {
			return res, fmt.Errorf("commit snapshot: %w", err)
		}
		return res, nil
	}

	out, err := s.remote.ScrobbleBatch(ctx, batch)
	if err != nil {
		if ctx.Err() == nil {
			if cerr := s.store.CommitSnapshots(ctx, d.Baseline); cerr != nil {
				s.log.Warn().Err(cerr).Msg("commit baseline after failed submission")
			}
		}
		return res, err
	}
	res.Accepted = out.Accepted
	res.Ignored = out.Ignored
	if out.Ignored > 0 {
		s.log.Info().Int("ignored", out.Ignored).Int("accepted", out.Accepted).
			Msg("last.fm ignored part of the batch")
	}

	entries := make([]state.SnapshotEntry, 0, len(covered)+len(d.Baseline))
	entries = append(entries, covered...)
	entries = append(entries, d.Baseline...)
	if err := s.store.CommitSnapshots(ctx, entries); err != nil {
		return res, fmt.Errorf("commit snapshot: %w", err)
	}
	return res, nil
}

// plan picks the groups that fit one batch and flattens their plays in
// chronological order.
func (s *Submitter) plan(pending []Pending) (batch []lastfm.ScrobbleTrack, covered []state.SnapshotEntry, deferred int) {
	groups := make([]Pending, len(pending))
	copy(groups, pending)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].oldest().Before(groups[j].oldest())
	})

	var plays []Play
	for i, g := range groups {
		room := s.batchSize - len(plays)
		if len(g.Plays) > room {
			if len(plays) > 0 {
				for _, rest := range groups[i:] {
					deferred += len(rest.Plays)
				}
				break
			}
			// A single track with more plays than a batch holds: keep the
			// most recent ones and drop the rest.
			s.log.Warn().Str("track", g.Entry.TrackID).Int("plays", len(g.Plays)).
				Msg("play count jump exceeds batch size, truncating")
			g.Plays = g.Plays[:room]
		}
		plays = append(plays, g.Plays...)
		covered = append(covered, g.Entry)
	}

	sort.SliceStable(plays, func(i, j int) bool {
		return plays[i].Timestamp.Before(plays[j].Timestamp)
	})
	batch = make([]lastfm.ScrobbleTrack, len(plays))
	for i, p := range plays {
		batch[i] = lastfm.ScrobbleTrack{
			Artist:    p.Artist,
			Track:     p.Title,
			Album:     p.Album,
			Duration:  p.Duration,
			Timestamp: p.Timestamp,
		}
	}
	return batch, covered, deferred
}

package daemon

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/llehouerou/scrobsync/internal/logging"
)

type countingService struct {
	starts  atomic.Int32
	failFor int32
}

func (s *countingService) Serve(ctx context.Context) error {
	if s.starts.Add(1) <= s.failFor {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func testTree() *Tree {
	logger := logging.NewSlogLogger(logging.NewTestLogger(io.Discard))
	return NewTree(logger, TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  100 * time.Millisecond,
	})
}

func TestTreeRestartsFailingService(t *testing.T) {
	tree := testTree()
	svc := &countingService{failFor: 2}
	tree.AddAuxService(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	go func() {
		_ = tree.Serve(ctx)
	}()
	time.Sleep(200 * time.Millisecond)

	if svc.starts.Load() < 3 {
		t.Errorf("expected at least 3 start attempts, got %d", svc.starts.Load())
	}
}

func TestTreeStopsOnCancel(t *testing.T) {
	tree := testTree()
	syncSvc := &countingService{}
	auxSvc := &countingService{}
	tree.AddSyncService(syncSvc)
	tree.AddAuxService(auxSvc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
	if syncSvc.starts.Load() != 1 || auxSvc.starts.Load() != 1 {
		t.Errorf("starts = %d, %d; want 1, 1", syncSvc.starts.Load(), auxSvc.starts.Load())
	}
}

package writer

import (
	"context"
	"testing"
	"time"

	"github.com/fontana-rollup/fontana/internal/ledger"
	"github.com/fontana-rollup/fontana/internal/storage"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	l, err := ledger.New(s, 16)
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	return New(l, 4)
}

func TestSubmitRunsExclusively(t *testing.T) {
	w := newTestWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	order := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		i := i
		if err := w.Submit(ctx, func(_ *ledger.Ledger) error {
			order = append(order, i)
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("expected submissions to run in submission order, got %v", order)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after context cancellation")
	}
}

func TestSubmitQueuedAtShutdownGetsCanceled(t *testing.T) {
	w := newTestWriter(t)
	ctx, cancel := context.WithCancel(context.Background())

	// Fill the mailbox without a Run goroutine draining it, then cancel:
	// the request is queued but never dequeued, so Run's shutdown path must
	// still answer it rather than leaving the submitter blocked forever.
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Submit(ctx, func(_ *ledger.Ledger) error { return nil })
	}()
	cancel()

	runDone := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(runDone)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected a queued-but-undequeued submission to fail on shutdown")
		}
	case <-time.After(time.Second):
		t.Fatalf("Submit did not return after shutdown drained the mailbox")
	}
	<-runDone
}

// Package writer implements the node's single-writer core: a bounded
// mailbox that serializes every Ledger mutation (ApplyTransaction,
// sequencing) into one total order, replacing ad-hoc locking with an
// explicit message-passing boundary (§5, §9).
package writer

import (
	"context"

	"github.com/fontana-rollup/fontana/internal/ledger"
	"github.com/fontana-rollup/fontana/internal/telemetry"
)

var log = telemetry.Get(telemetry.NODE)

// request is a unit of work submitted to the writer: a closure with
// exclusive access to the ledger for its duration, plus a channel to carry
// its result back to the submitter.
type request struct {
	fn     func(*ledger.Ledger) error
	result chan error
}

// Writer owns the ledger and drains a bounded channel of requests on a
// single goroutine, so callers never need to reason about concurrent
// mutation of ledger or Merkle state.
type Writer struct {
	ledger *ledger.Ledger
	mbox   chan request
}

// New constructs a Writer with the given mailbox capacity (the bounded
// queue that provides backpressure to ingress handlers).
func New(l *ledger.Ledger, capacity int) *Writer {
	if capacity <= 0 {
		capacity = 256
	}
	return &Writer{ledger: l, mbox: make(chan request, capacity)}
}

// Submit enqueues fn for exclusive execution against the ledger and blocks
// until it runs or ctx is cancelled. This is the narrow capability ingress
// handlers (bridge, future RPC ingest) and the Sequencer use instead of
// taking a lock directly.
func (w *Writer) Submit(ctx context.Context, fn func(*ledger.Ledger) error) error {
	req := request{fn: fn, result: make(chan error, 1)}
	select {
	case w.mbox <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the mailbox until ctx is cancelled, then stops accepting new
// work. Shutdown is cooperative: a request already dequeued runs to
// completion (so the Sequencer is always allowed to finish a block in
// progress) before Run observes cancellation.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info("core writer draining remaining mailbox before shutdown")
			w.drainRemaining()
			return
		case req := <-w.mbox:
			req.result <- req.fn(w.ledger)
		}
	}
}

// drainRemaining answers every request already queued at shutdown time with
// context.Canceled rather than silently dropping them, so no Submit caller
// blocks forever.
func (w *Writer) drainRemaining() {
	for {
		select {
		case req := <-w.mbox:
			req.result <- context.Canceled
		default:
			return
		}
	}
}

// Package da implements at-least-once delivery of locally committed blocks
// to the external data-availability layer: retry with backoff, strict
// height ordering, and local-commit/DA-commit separation so a DA outage
// never blocks the writer.
package da

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fontana-rollup/fontana/internal/codec"
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/fontana-rollup/fontana/internal/storage"
	"github.com/fontana-rollup/fontana/internal/telemetry"
)

var log = telemetry.Get(telemetry.DAPO)

// PosterConfig governs the DA Poster's submission loop.
type PosterConfig struct {
	// BaseNamespace is the configured namespace base; per-block namespaces
	// are derived from it via DeriveNamespace.
	BaseNamespace Namespace
	// PollInterval is how often the poster checks for newly uncommitted
	// blocks when it is not already backing off a failure.
	PollInterval time.Duration
}

// Poster runs on its own goroutine, disjoint from the core writer: it only
// ever reads BlockRecord.Header/Transactions (immutable once locally
// committed) and writes DACommitted/BlobRef plus the last_da_height_posted
// system var, so it may run fully concurrently with ledger/sequencer
// activity (§5).
type Poster struct {
	client Client
	store  *storage.Store
	cfg    PosterConfig
}

// NewPoster constructs a Poster submitting through client.
func NewPoster(client Client, store *storage.Store, cfg PosterConfig) *Poster {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Poster{client: client, store: store, cfg: cfg}
}

// Run drives the submission loop until ctx is cancelled. On a transient
// failure it backs off and retries the same block rather than advancing;
// on a permanent failure it emits a critical alert and leaves the block
// uncommitted (local state is never rewritten to paper over a DA failure).
func (p *Poster) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("da poster shutting down")
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

// drain submits every uncommitted block in ascending height order, stopping
// at the first one that cannot be submitted this round so a later height is
// never posted before an earlier one (preserving replay determinism).
func (p *Poster) drain(ctx context.Context) {
	blocks, err := p.store.FetchUncommittedBlocks()
	if err != nil {
		log.WithError(err).Error("failed to fetch uncommitted blocks")
		return
	}
	for _, rec := range blocks {
		if err := p.submitOne(ctx, rec); err != nil {
			log.WithField("height", rec.Header.Height).WithError(err).Warn("block not yet da-committed")
			return
		}
	}
}

// submitOne submits a single block with exponential backoff for transient
// failures, returning only once it succeeds, hits ctx cancellation, or a
// permanent failure is reported. A permanent failure alerts and still
// returns the error: drain must stop rather than post a later height ahead
// of this one.
func (p *Poster) submitOne(ctx context.Context, rec *ledgertypes.BlockRecord) error {
	block := &ledgertypes.Block{Header: rec.Header, Transactions: rec.Transactions}
	blob := block.EncodeBlob()
	namespace := DeriveNamespace(p.cfg.BaseNamespace, rec.Header.Height)

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

	var blobRef string
	var postedDAHeight uint64
	op := func() error {
		daHeight, commitment, err := p.client.Submit(ctx, namespace, blob)
		if err != nil {
			if daErr, ok := err.(*ledgertypes.DAError); ok && daErr.Kind == ledgertypes.DAPermanent {
				log.WithField("height", rec.Header.Height).WithError(err).Error("CRITICAL: permanent DA submission failure")
				return backoff.Permanent(err)
			}
			return err
		}
		blobRef = BlobRef(daHeight, commitment)
		postedDAHeight = daHeight
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		return err
	}

	if err := p.store.MarkBlockDACommitted(rec.Header.Height, blobRef); err != nil {
		return err
	}
	// Watermark for operators and restart diagnostics; not load-bearing for
	// correctness, so a failure only warns.
	w := codec.NewWriter()
	w.WriteUint64(postedDAHeight)
	if err := p.store.SetSystemVar("last_da_height_posted", w.Bytes()); err != nil {
		log.WithError(err).Warn("failed to record da height watermark")
	}
	log.WithField("height", rec.Header.Height).WithField("blob_ref", blobRef).Info("da-committed block")
	return nil
}

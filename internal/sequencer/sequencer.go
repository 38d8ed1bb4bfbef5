// Package sequencer implements the single-writer block producer: steady
// time-cadence batching of applied-but-unconfirmed transactions into
// immutable, locally committed blocks.
package sequencer

import (
	"context"
	"sync"
	"time"

	"github.com/fontana-rollup/fontana/internal/ledger"
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/fontana-rollup/fontana/internal/storage"
	"github.com/fontana-rollup/fontana/internal/telemetry"
)

var log = telemetry.Get(telemetry.SEQR)

// Config governs the Sequencer's trigger policy.
type Config struct {
	// BlockInterval is the steady cadence at which a block (possibly empty)
	// is produced.
	BlockInterval time.Duration
	// MaxBatch, if non-zero, is the pending count at which
	// ShouldTriggerEarly reports true. The Sequencer does not build on its
	// own when the count is reached; BuildBlock runs only when a caller
	// invokes it, and cmd/fontanad invokes it on the time trigger alone. A
	// block always drains the *entire* pending queue rather than capping it
	// at MaxBatch — see DESIGN.md for why a hard per-block cap was not
	// implemented.
	MaxBatch int
}

// Sequencer is single-writer: BuildBlock must only ever be invoked from the
// node's core writer goroutine, interleaved with Ledger.ApplyTransaction
// calls, so that height and state root observation stay serialized with
// transaction application (§5).
type Sequencer struct {
	ledger *ledger.Ledger
	store  *storage.Store
	cfg    Config

	mu sync.Mutex
}

// New constructs a Sequencer over ledger and store.
func New(l *ledger.Ledger, store *storage.Store, cfg Config) *Sequencer {
	if cfg.BlockInterval <= 0 {
		cfg.BlockInterval = 6 * time.Second
	}
	return &Sequencer{ledger: l, store: store, cfg: cfg}
}

// Run drives the cadence loop until ctx is cancelled. It is the caller's
// responsibility to invoke Run on the core writer so BuildBlock is never
// concurrent with ApplyTransaction.
func (s *Sequencer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sequencer shutting down")
			return
		case <-ticker.C:
			if _, err := s.BuildBlock(); err != nil {
				log.WithError(err).Error("failed to build block")
			}
		}
	}
}

// ShouldTriggerEarly reports whether pendingCount has reached the
// configured size trigger. Nothing in this repository calls it: no ingress
// path checks it after an applied transaction, so blocks are not built ahead
// of the next tick.
func (s *Sequencer) ShouldTriggerEarly(pendingCount int) bool {
	return s.cfg.MaxBatch > 0 && pendingCount >= s.cfg.MaxBatch
}

// BuildBlock selects every currently pending transaction (FIFO by arrival,
// txid ascending as tie-breaker — guaranteed by Ledger.DrainUnconfirmed),
// constructs and persists the header as locally committed, and returns the
// resulting record. It is safe to call with zero pending transactions: the
// steady cadence always produces a block, empty or not.
func (s *Sequencer) BuildBlock() (*ledgertypes.BlockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevHeader, err := s.latestHeader()
	if err != nil {
		return nil, err
	}

	pending := s.ledger.DrainUnconfirmed()
	height := prevHeader.Height + 1

	txMerkleRoot := ledgertypes.ComputeTxMerkleRoot(pending)
	stateRoot := s.ledger.FinalizeBlock(height)

	header := ledgertypes.BlockHeader{
		Height:       height,
		PrevHash:     prevHeader.Hash(),
		StateRoot:    stateRoot,
		TxMerkleRoot: txMerkleRoot,
		Timestamp:    time.Now().Unix(),
		TxCount:      uint32(len(pending)),
	}
	rec := &ledgertypes.BlockRecord{
		Header:         header,
		Transactions:   pending,
		LocalCommitted: true,
	}

	stx, err := s.store.Begin()
	if err != nil {
		return nil, ledgertypes.NewStorageError("begin", err)
	}
	if err := stx.InsertBlock(rec); err != nil {
		stx.Rollback()
		return nil, ledgertypes.NewStorageError("insert_block", err)
	}
	if err := stx.Commit(); err != nil {
		return nil, ledgertypes.NewStorageError("commit", err)
	}

	log.WithField("height", height).WithField("tx_count", len(pending)).Info("sequenced block")
	return rec, nil
}

func (s *Sequencer) latestHeader() (*ledgertypes.BlockHeader, error) {
	latest, err := s.store.GetLatestBlock()
	if err == storage.ErrNotFound {
		return nil, ledgertypes.NewValidationError(ledgertypes.ErrMalformedTransaction, "no genesis block found; load genesis before starting the sequencer")
	}
	if err != nil {
		return nil, err
	}
	return &latest.Header, nil
}

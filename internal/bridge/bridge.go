// Package bridge translates L1 vault events into ledger operations: deposit
// minting and withdrawal-confirmation bookkeeping. The L1 vault watcher
// itself (chain-specific RPC polling) is an external collaborator; this
// package only consumes the events it produces.
package bridge

import (
	"context"

	"github.com/fontana-rollup/fontana/internal/ledger"
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/fontana-rollup/fontana/internal/storage"
	"github.com/fontana-rollup/fontana/internal/telemetry"
)

var log = telemetry.Get(telemetry.BRDG)

// WithdrawalConfirmation is the L1-side finality signal for a previously
// burned withdrawal: the bridge contract processed the Merkle proof bundle
// and paid out recipient_l1.
type WithdrawalConfirmation struct {
	BurnTxID ledgertypes.Hash
	L1TxHash string
}

// VaultEventSource is the injected L1 watcher capability: a stream of
// deposit events observed on the monitored vault contract. Per spec §1,
// its chain-specific RPC polling is out of scope; this is the narrow event
// source interface the Bridge Handler depends on instead.
type VaultEventSource interface {
	// Deposits returns a channel of deposit events. The source is
	// responsible for its own L1 polling cadence and for not re-emitting
	// a deposit already marked processed (though Handler tolerates
	// redelivery regardless).
	Deposits(ctx context.Context) <-chan ledgertypes.VaultDeposit
}

// Submitter is the narrow capability the Handler needs from the node's
// single-writer core: exclusive, serialized access to the ledger. Routing
// through it (rather than holding a *ledger.Ledger directly) keeps bridge
// events from racing the Sequencer's own writer-submitted block builds.
type Submitter interface {
	Submit(ctx context.Context, fn func(*ledger.Ledger) error) error
}

// Handler is the Bridge Handler component: deposit minting and withdrawal
// finalisation, both idempotent under event redelivery.
type Handler struct {
	store  *storage.Store
	writer Submitter
}

// New constructs a Handler over store and the node's core writer.
func New(store *storage.Store, w Submitter) *Handler {
	return &Handler{store: store, writer: w}
}

// Run consumes deposit events from source until ctx is cancelled.
func (h *Handler) Run(ctx context.Context, source VaultEventSource) {
	deposits := source.Deposits(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("bridge handler shutting down")
			return
		case d, ok := <-deposits:
			if !ok {
				return
			}
			if err := h.HandleDepositReceived(ctx, &d); err != nil {
				log.WithField("l1_tx_hash", d.L1TxHash).WithError(err).Error("failed to handle deposit")
			}
		}
	}
}

// HandleDepositReceived is idempotent on deposit.L1TxHash: a deposit
// already recorded as processed is a no-op (P5).
func (h *Handler) HandleDepositReceived(ctx context.Context, deposit *ledgertypes.VaultDeposit) error {
	stx, err := h.store.Begin()
	if err != nil {
		return ledgertypes.NewStorageError("begin", err)
	}

	existing, err := stx.GetVaultDeposit(deposit.L1TxHash)
	if err == nil && existing.Processed {
		stx.Rollback()
		log.WithField("l1_tx_hash", deposit.L1TxHash).Debug("deposit already processed, skipping")
		return nil
	}
	if err != nil && err != storage.ErrNotFound {
		stx.Rollback()
		return ledgertypes.NewStorageError("get_vault_deposit", err)
	}

	if err == storage.ErrNotFound {
		if err := stx.InsertVaultDeposit(deposit); err != nil {
			stx.Rollback()
			return ledgertypes.NewStorageError("insert_vault_deposit", err)
		}
	}
	if err := stx.Commit(); err != nil {
		return ledgertypes.NewStorageError("commit", err)
	}

	if err := h.writer.Submit(ctx, func(l *ledger.Ledger) error {
		return l.ProcessDepositEvent(deposit)
	}); err != nil {
		return err
	}

	markStx, err := h.store.Begin()
	if err != nil {
		return ledgertypes.NewStorageError("begin", err)
	}
	if err := markStx.MarkVaultDepositProcessed(deposit.L1TxHash); err != nil {
		markStx.Rollback()
		return ledgertypes.NewStorageError("mark_vault_deposit_processed", err)
	}
	if err := markStx.Commit(); err != nil {
		return ledgertypes.NewStorageError("commit", err)
	}

	log.WithField("l1_tx_hash", deposit.L1TxHash).WithField("recipient", deposit.Recipient).WithField("amount", deposit.Amount).Info("minted deposit")
	return nil
}

// HandleWithdrawalConfirmed transitions the withdrawal referenced by
// confirmation.BurnTxID to finalised. It performs no UTXO mutation: the
// burn transaction already spent the withdrawal's inputs when it was
// applied.
func (h *Handler) HandleWithdrawalConfirmed(ctx context.Context, confirmation *WithdrawalConfirmation) error {
	return h.writer.Submit(ctx, func(l *ledger.Ledger) error {
		return l.ProcessWithdrawalEvent(&ledgertypes.VaultWithdrawal{
			BurnTxID: confirmation.BurnTxID,
			L1TxHash: confirmation.L1TxHash,
		})
	})
}

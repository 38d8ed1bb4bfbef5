package bridge

import (
	"context"
	"testing"

	"github.com/fontana-rollup/fontana/internal/ledger"
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/fontana-rollup/fontana/internal/sign"
	"github.com/fontana-rollup/fontana/internal/storage"
)

// directSubmitter runs fn inline against l, bypassing any mailbox — adequate
// for tests that don't exercise concurrent writer access.
type directSubmitter struct {
	l *ledger.Ledger
}

func (d directSubmitter) Submit(_ context.Context, fn func(*ledger.Ledger) error) error {
	return fn(d.l)
}

func newTestHandler(t *testing.T) (*Handler, *storage.Store, *ledger.Ledger) {
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
	return New(s, directSubmitter{l: l}), s, l
}

func TestHandleDepositReceivedMintsOnce(t *testing.T) {
	h, _, l := newTestHandler(t)
	deposit := &ledgertypes.VaultDeposit{L1TxHash: "0xabc", Recipient: "alice", Amount: 10}

	if err := h.HandleDepositReceived(context.Background(), deposit); err != nil {
		t.Fatalf("HandleDepositReceived: %v", err)
	}
	if err := h.HandleDepositReceived(context.Background(), deposit); err != nil {
		t.Fatalf("HandleDepositReceived (redelivery): %v", err)
	}

	balance, err := l.GetBalance("alice")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 10 {
		t.Fatalf("expected exactly one mint's worth of balance, got %d", balance)
	}
}

func TestHandleWithdrawalConfirmedFinalises(t *testing.T) {
	h, s, l := newTestHandler(t)

	var seed [32]byte
	seed[0] = 21
	alice := sign.NewKeyPair(seed)

	stx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	ref := ledgertypes.UTXORef{TxID: ledgertypes.SumHash([]byte("seed")), OutputIndex: 0}
	if err := stx.InsertUTXO(&ledgertypes.UTXO{Ref: ref, Recipient: alice.Address(), Amount: 50, Status: ledgertypes.Unspent}); err != nil {
		t.Fatalf("InsertUTXO: %v", err)
	}
	if err := stx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	burnTx := &ledgertypes.SignedTransaction{
		Inputs:       []ledgertypes.UTXORef{ref},
		SenderPubKey: alice.PubKeyCompressed(),
		Kind:         ledgertypes.KindBurn,
	}
	burnTx.TxID = burnTx.ComputeTxID()
	burnTx.Signature = alice.Sign(burnTx.SigningHash())
	if err := l.ApplyTransaction(burnTx); err != nil {
		t.Fatalf("ApplyTransaction (burn): %v", err)
	}

	confirmation := &WithdrawalConfirmation{BurnTxID: burnTx.TxID, L1TxHash: "0xfinal"}
	if err := h.HandleWithdrawalConfirmed(context.Background(), confirmation); err != nil {
		t.Fatalf("HandleWithdrawalConfirmed: %v", err)
	}

	stx2, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer stx2.Rollback()
	w, err := stx2.GetVaultWithdrawal(burnTx.TxID)
	if err != nil {
		t.Fatalf("GetVaultWithdrawal: %v", err)
	}
	if w.Status != ledgertypes.WithdrawalFinalised {
		t.Fatalf("expected the withdrawal to be finalised, got status %s", w.Status)
	}
}

func TestHandleWithdrawalConfirmedRejectsUnknownBurn(t *testing.T) {
	h, _, _ := newTestHandler(t)
	err := h.HandleWithdrawalConfirmed(context.Background(), &WithdrawalConfirmation{BurnTxID: ledgertypes.SumHash([]byte("ghost"))})
	if _, ok := err.(*ledgertypes.BridgeError); !ok {
		t.Fatalf("expected a BridgeError for an unknown burn_txid, got %v", err)
	}
}

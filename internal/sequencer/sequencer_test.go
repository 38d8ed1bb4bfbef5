package sequencer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fontana-rollup/fontana/internal/genesis"
	"github.com/fontana-rollup/fontana/internal/ledger"
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/fontana-rollup/fontana/internal/sign"
	"github.com/fontana-rollup/fontana/internal/storage"
)

func newTestSequencer(t *testing.T, recipient string, amount uint64) (*Sequencer, *ledger.Ledger, *storage.Store) {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	file := genesis.File{ChainID: "fontana-test", UTXOs: []genesis.UTXOSpec{{Recipient: recipient, Amount: amount}}}
	raw, err := json.Marshal(file)
	if err != nil {
		t.Fatalf("marshal genesis: %v", err)
	}
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	if _, err := genesis.Load(s, path); err != nil {
		t.Fatalf("genesis.Load: %v", err)
	}

	l, err := ledger.New(s, 16)
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	return New(l, s, Config{}), l, s
}

func TestBuildBlockWithNoPendingTxsIsEmpty(t *testing.T) {
	seq, _, _ := newTestSequencer(t, "alice", 100)

	rec, err := seq.BuildBlock()
	if err != nil {
		t.Fatalf("BuildBlock: %v", err)
	}
	if rec.Header.Height != 1 {
		t.Fatalf("expected the first sequenced block to be height 1, got %d", rec.Header.Height)
	}
	if rec.Header.TxCount != 0 {
		t.Fatalf("expected an empty block, got tx_count %d", rec.Header.TxCount)
	}
	if rec.Header.TxMerkleRoot != (ledgertypes.Hash{}) {
		t.Fatalf("expected an empty block to have the zero tx merkle root")
	}
}

func TestBuildBlockDrainsPendingAndChainsHeaders(t *testing.T) {
	var seed [32]byte
	seed[0] = 9
	alice := sign.NewKeyPair(seed)

	seq, l, s := newTestSequencer(t, alice.Address(), 100)

	genesisHeader, err := seq.latestHeader()
	if err != nil {
		t.Fatalf("latestHeader: %v", err)
	}
	aliceUTXOs, err := s.GetUnspentByAddress(alice.Address())
	if err != nil || len(aliceUTXOs) != 1 {
		t.Fatalf("expected exactly one genesis utxo for alice, got %+v, err %v", aliceUTXOs, err)
	}
	inputRef := aliceUTXOs[0].Ref

	tx := &ledgertypes.SignedTransaction{
		Inputs:       []ledgertypes.UTXORef{inputRef},
		Outputs:      []ledgertypes.TxOutput{{Recipient: "bob", Amount: 100}},
		SenderPubKey: alice.PubKeyCompressed(),
		Kind:         ledgertypes.KindTransfer,
	}
	tx.TxID = tx.ComputeTxID()
	tx.Signature = alice.Sign(tx.SigningHash())

	if err := l.ApplyTransaction(tx); err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}

	rec, err := seq.BuildBlock()
	if err != nil {
		t.Fatalf("BuildBlock: %v", err)
	}
	if rec.Header.Height != 1 {
		t.Fatalf("expected height 1, got %d", rec.Header.Height)
	}
	if rec.Header.PrevHash != genesisHeader.Hash() {
		t.Fatalf("first block's prev_hash must chain to genesis")
	}
	if rec.Header.TxCount != 1 {
		t.Fatalf("expected the applied transfer to be drained into the block, got tx_count %d", rec.Header.TxCount)
	}

	rec2, err := seq.BuildBlock()
	if err != nil {
		t.Fatalf("BuildBlock (second): %v", err)
	}
	if rec2.Header.Height != 2 {
		t.Fatalf("expected height 2, got %d", rec2.Header.Height)
	}
	if rec2.Header.PrevHash != rec.Header.Hash() {
		t.Fatalf("second block's prev_hash must chain to the first block's header hash")
	}
	if rec2.Header.TxCount != 0 {
		t.Fatalf("a transaction must only ever be drained into one block")
	}
}

func TestShouldTriggerEarly(t *testing.T) {
	seq := &Sequencer{cfg: Config{MaxBatch: 5}}
	if seq.ShouldTriggerEarly(4) {
		t.Fatalf("should not trigger below max_batch")
	}
	if !seq.ShouldTriggerEarly(5) {
		t.Fatalf("should trigger once pending reaches max_batch")
	}

	unconfigured := &Sequencer{cfg: Config{}}
	if unconfigured.ShouldTriggerEarly(1000) {
		t.Fatalf("max_batch of zero must disable the early trigger")
	}
}

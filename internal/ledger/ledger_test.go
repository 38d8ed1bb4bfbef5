package ledger

import (
	"testing"

	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/fontana-rollup/fontana/internal/merkle"
	"github.com/fontana-rollup/fontana/internal/sign"
	"github.com/fontana-rollup/fontana/internal/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	l, err := New(s, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func seedUTXO(t *testing.T, l *Ledger, recipient string, amount uint64) ledgertypes.UTXORef {
	t.Helper()
	ref := ledgertypes.UTXORef{TxID: ledgertypes.SumHash([]byte(recipient + "-seed")), OutputIndex: 0}
	stx, err := l.store.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	u := &ledgertypes.UTXO{Ref: ref, Recipient: recipient, Amount: amount, Status: ledgertypes.Unspent}
	if err := stx.InsertUTXO(u); err != nil {
		t.Fatalf("InsertUTXO: %v", err)
	}
	if err := stx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	l.tree.Put(ref.MerkleKey(), u.LeafHash())
	return ref
}

func keypair(seedByte byte) *sign.KeyPair {
	var seed [32]byte
	seed[0] = seedByte
	return sign.NewKeyPair(seed)
}

func buildTransferTx(t *testing.T, kp *sign.KeyPair, inputs []ledgertypes.UTXORef, outputs []ledgertypes.TxOutput, fee uint64, kind ledgertypes.TxKind) *ledgertypes.SignedTransaction {
	t.Helper()
	tx := &ledgertypes.SignedTransaction{
		Inputs:       inputs,
		Outputs:      outputs,
		Fee:          fee,
		SenderPubKey: kp.PubKeyCompressed(),
		Kind:         kind,
	}
	tx.TxID = tx.ComputeTxID()
	tx.Signature = kp.Sign(tx.SigningHash())
	return tx
}

func TestApplyTransferMovesFunds(t *testing.T) {
	l := newTestLedger(t)
	alice := keypair(1)
	ref := seedUTXO(t, l, alice.Address(), 100)

	tx := buildTransferTx(t, alice, []ledgertypes.UTXORef{ref}, []ledgertypes.TxOutput{{Recipient: "bob", Amount: 90}}, 10, ledgertypes.KindTransfer)
	if err := l.ApplyTransaction(tx); err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}

	bobBalance, err := l.GetBalance("bob")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bobBalance != 90 {
		t.Fatalf("expected bob to have 90, got %d", bobBalance)
	}
	aliceBalance, err := l.GetBalance(alice.Address())
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if aliceBalance != 0 {
		t.Fatalf("expected alice's input to be fully spent, got balance %d", aliceBalance)
	}
}

func TestApplyTransactionRejectsDoubleSpend(t *testing.T) {
	l := newTestLedger(t)
	alice := keypair(2)
	ref := seedUTXO(t, l, alice.Address(), 100)

	tx1 := buildTransferTx(t, alice, []ledgertypes.UTXORef{ref}, []ledgertypes.TxOutput{{Recipient: "bob", Amount: 100}}, 0, ledgertypes.KindTransfer)
	if err := l.ApplyTransaction(tx1); err != nil {
		t.Fatalf("ApplyTransaction (first spend): %v", err)
	}

	tx2 := buildTransferTx(t, alice, []ledgertypes.UTXORef{ref}, []ledgertypes.TxOutput{{Recipient: "carol", Amount: 100}}, 0, ledgertypes.KindTransfer)
	err := l.ApplyTransaction(tx2)
	if err == nil {
		t.Fatalf("expected the second spend of the same input to be rejected")
	}
	verr, ok := err.(*ledgertypes.ValidationError)
	if !ok || verr.Code != ledgertypes.ErrInputAlreadySpent {
		t.Fatalf("expected ErrInputAlreadySpent, got %v", err)
	}
}

func TestApplyTransactionRejectsConservationViolation(t *testing.T) {
	l := newTestLedger(t)
	alice := keypair(3)
	ref := seedUTXO(t, l, alice.Address(), 100)

	tx := buildTransferTx(t, alice, []ledgertypes.UTXORef{ref}, []ledgertypes.TxOutput{{Recipient: "bob", Amount: 150}}, 0, ledgertypes.KindTransfer)
	err := l.ApplyTransaction(tx)
	verr, ok := err.(*ledgertypes.ValidationError)
	if !ok || verr.Code != ledgertypes.ErrConservationViolation {
		t.Fatalf("expected ErrConservationViolation, got %v", err)
	}
}

func TestApplyTransactionRejectsForgedOwnership(t *testing.T) {
	l := newTestLedger(t)
	alice := keypair(4)
	mallory := keypair(5)
	ref := seedUTXO(t, l, alice.Address(), 100)

	tx := buildTransferTx(t, mallory, []ledgertypes.UTXORef{ref}, []ledgertypes.TxOutput{{Recipient: "bob", Amount: 100}}, 0, ledgertypes.KindTransfer)
	err := l.ApplyTransaction(tx)
	verr, ok := err.(*ledgertypes.ValidationError)
	if !ok || verr.Code != ledgertypes.ErrInputNotFound {
		t.Fatalf("expected ErrInputNotFound for a forged sender, got %v", err)
	}
}

func TestApplyBurnRecordsWithdrawal(t *testing.T) {
	l := newTestLedger(t)
	alice := keypair(6)
	ref := seedUTXO(t, l, alice.Address(), 100)

	tx := buildTransferTx(t, alice, []ledgertypes.UTXORef{ref}, nil, 5, ledgertypes.KindBurn)
	if err := l.ApplyTransaction(tx); err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}

	stx, err := l.store.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer stx.Rollback()
	w, err := stx.GetVaultWithdrawal(tx.TxID)
	if err != nil {
		t.Fatalf("GetVaultWithdrawal: %v", err)
	}
	if w.Amount != 95 {
		t.Fatalf("expected burn amount 95, got %d", w.Amount)
	}
	if w.RecipientL1 != alice.Address() {
		t.Fatalf("expected withdrawal recipient %s, got %s", alice.Address(), w.RecipientL1)
	}
	if w.Status != ledgertypes.WithdrawalPending {
		t.Fatalf("expected a freshly recorded withdrawal to be pending")
	}
}

func TestProcessDepositEventIsIdempotent(t *testing.T) {
	l := newTestLedger(t)
	deposit := &ledgertypes.VaultDeposit{L1TxHash: "0x1", Recipient: "alice", Amount: 42}

	if err := l.ProcessDepositEvent(deposit); err != nil {
		t.Fatalf("ProcessDepositEvent: %v", err)
	}
	if err := l.ProcessDepositEvent(deposit); err != nil {
		t.Fatalf("ProcessDepositEvent (redelivery): %v", err)
	}

	balance, err := l.GetBalance("alice")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 42 {
		t.Fatalf("expected exactly one mint's worth of balance, got %d", balance)
	}
}

func TestProcessWithdrawalEventRejectsUnknownBurn(t *testing.T) {
	l := newTestLedger(t)
	err := l.ProcessWithdrawalEvent(&ledgertypes.VaultWithdrawal{BurnTxID: ledgertypes.SumHash([]byte("never-burned"))})
	if _, ok := err.(*ledgertypes.BridgeError); !ok {
		t.Fatalf("expected a BridgeError for an unknown burn_txid, got %v", err)
	}
}

func TestGenerateUTXOProofAgainstHistoricalRoot(t *testing.T) {
	l := newTestLedger(t)
	alice := keypair(8)
	ref := seedUTXO(t, l, alice.Address(), 100)
	rootBefore := l.FinalizeBlock(1)

	tx := buildTransferTx(t, alice, []ledgertypes.UTXORef{ref}, []ledgertypes.TxOutput{{Recipient: "bob", Amount: 100}}, 0, ledgertypes.KindTransfer)
	if err := l.ApplyTransaction(tx); err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}
	l.FinalizeBlock(2)

	proof, err := l.GenerateUTXOProof(ref, rootBefore)
	if err != nil {
		t.Fatalf("GenerateUTXOProof: %v", err)
	}
	wantLeaf := (&ledgertypes.UTXO{Ref: ref, Recipient: alice.Address(), Amount: 100}).LeafHash()
	if proof.Leaf != wantLeaf {
		t.Fatalf("expected the pre-spend leaf at the historical root, got %s", proof.Leaf)
	}
	if !merkle.Verify(rootBefore, proof.Key, proof.Leaf, proof.Siblings) {
		t.Fatalf("historical proof did not verify against the pre-spend root")
	}
}

func TestGenerateUTXOProofRejectsUnknownRoot(t *testing.T) {
	l := newTestLedger(t)
	ref := ledgertypes.UTXORef{TxID: ledgertypes.SumHash([]byte("any")), OutputIndex: 0}
	_, err := l.GenerateUTXOProof(ref, ledgertypes.SumHash([]byte("never-committed")))
	if _, ok := err.(*ledgertypes.ProofError); !ok {
		t.Fatalf("expected a ProofError for an unretained root, got %v", err)
	}
}

func TestFinalizeBlockAdvancesHeightAndRoot(t *testing.T) {
	l := newTestLedger(t)
	alice := keypair(7)
	seedUTXO(t, l, alice.Address(), 10)

	root := l.FinalizeBlock(1)
	if root != l.GetCurrentStateRoot() {
		t.Fatalf("FinalizeBlock's returned root should match the live root at commit time")
	}
	if l.NextHeight() != 2 {
		t.Fatalf("expected next height 2 after finalizing height 1, got %d", l.NextHeight())
	}
}

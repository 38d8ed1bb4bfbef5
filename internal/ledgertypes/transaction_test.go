package ledgertypes

import (
	"bytes"
	"testing"
)

func TestTransactionRoundTripPreservesTxID(t *testing.T) {
	tx := &SignedTransaction{
		Inputs: []UTXORef{{TxID: SumHash([]byte("g1")), OutputIndex: 0}},
		Outputs: []TxOutput{
			{Recipient: "B", Amount: 60},
			{Recipient: "A", Amount: 39},
		},
		Fee:          1,
		PayloadHash:  SumHash([]byte("payload")),
		SenderPubKey: []byte{0x02, 0x03, 0x04},
		Signature:    []byte{0xde, 0xad, 0xbe, 0xef},
		Kind:         KindTransfer,
	}
	tx.TxID = tx.ComputeTxID()

	encoded := tx.CanonicalBytes()
	decoded, err := DecodeTransaction(encoded)
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}

	if decoded.ComputeTxID() != tx.TxID {
		t.Fatalf("txid changed across round trip: got %s want %s", decoded.ComputeTxID(), tx.TxID)
	}
	if !bytes.Equal(decoded.CanonicalBytes(), encoded) {
		t.Fatalf("re-encoding decoded tx did not reproduce original bytes")
	}
}

func TestSameFieldsYieldSameTxID(t *testing.T) {
	mk := func() *SignedTransaction {
		return &SignedTransaction{
			Inputs:       []UTXORef{{TxID: SumHash([]byte("x")), OutputIndex: 2}},
			Outputs:      []TxOutput{{Recipient: "A", Amount: 5}},
			Fee:          0,
			PayloadHash:  Hash{},
			SenderPubKey: []byte{1, 2, 3},
			Kind:         KindTransfer,
		}
	}
	tx1 := mk()
	tx2 := mk()
	tx2.Signature = []byte{9, 9, 9} // signature must not affect txid

	if tx1.ComputeTxID() != tx2.ComputeTxID() {
		t.Fatalf("txid depends on signature, but spec excludes it from the txid binding")
	}
}

func TestMintTxIDDeterministicPerDeposit(t *testing.T) {
	id1 := MintTxID("0xDEAD")
	id2 := MintTxID("0xDEAD")
	id3 := MintTxID("0xBEEF")

	if id1 != id2 {
		t.Fatalf("MintTxID not deterministic for identical l1_tx_hash")
	}
	if id1 == id3 {
		t.Fatalf("MintTxID collided across distinct l1_tx_hash values")
	}
}

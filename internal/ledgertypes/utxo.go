package ledgertypes

import "github.com/fontana-rollup/fontana/internal/codec"

// UTXOStatus is the lifecycle state of a transaction output.
type UTXOStatus uint8

const (
	Unspent UTXOStatus = iota
	Spent
)

func (s UTXOStatus) String() string {
	if s == Spent {
		return "spent"
	}
	return "unspent"
}

// UTXORef identifies a transaction output: (txid, output_index). Unique
// across the whole ledger.
type UTXORef struct {
	TxID        Hash
	OutputIndex uint32
}

// MerkleKey derives the sparse-Merkle-tree key for this output:
// H(txid ‖ output_index).
func (r UTXORef) MerkleKey() Hash {
	w := make([]byte, HashSize+4)
	copy(w, r.TxID[:])
	w[HashSize] = byte(r.OutputIndex >> 24)
	w[HashSize+1] = byte(r.OutputIndex >> 16)
	w[HashSize+2] = byte(r.OutputIndex >> 8)
	w[HashSize+3] = byte(r.OutputIndex)
	return SumHash(w)
}

// UTXO is an addressable credit: a single unspent or spent transaction output.
type UTXO struct {
	Ref            UTXORef
	Recipient      string
	Amount         uint64
	Status         UTXOStatus
	CreatedInBlock uint64
	SpentInBlock   *uint64
}

// LeafHash computes the Merkle leaf for this UTXO's contents:
// H(recipient ‖ amount ‖ txid ‖ output_index).
func (u *UTXO) LeafHash() Hash {
	w := codec.NewWriter()
	w.WriteString(u.Recipient)
	w.WriteUint64(u.Amount)
	w.WriteBytes(u.Ref.TxID[:])
	w.WriteUint32(u.Ref.OutputIndex)
	return SumHash(w.Bytes())
}

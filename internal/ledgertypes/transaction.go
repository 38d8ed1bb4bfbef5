package ledgertypes

import "github.com/fontana-rollup/fontana/internal/codec"

// TxKind distinguishes ordinary transfers from the synthetic mint/burn
// transactions used to bridge L1 deposits and withdrawals.
type TxKind uint8

const (
	KindTransfer TxKind = iota
	KindMint
	KindBurn
)

func (k TxKind) String() string {
	switch k {
	case KindMint:
		return "mint"
	case KindBurn:
		return "burn"
	default:
		return "transfer"
	}
}

// TxOutput is a single (recipient, amount) credit created by a transaction.
type TxOutput struct {
	Recipient string
	Amount    uint64
}

// SignedTransaction is the wire form of a ledger mutation.
type SignedTransaction struct {
	TxID         Hash
	Inputs       []UTXORef
	Outputs      []TxOutput
	Fee          uint64
	PayloadHash  Hash
	SenderPubKey []byte
	Signature    []byte
	Kind         TxKind
}

// signingBytes encodes the fields that are bound by txid and by the
// signature: {inputs, outputs, fee, payload_hash, sender_pubkey, kind}.
// The signature itself is deliberately excluded so that txid is stable
// across re-signing and so Verify can hash the same bytes it signed.
func (tx *SignedTransaction) signingBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint32(uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		w.WriteBytes(in.TxID[:])
		w.WriteUint32(in.OutputIndex)
	}
	w.WriteUint32(uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		w.WriteString(out.Recipient)
		w.WriteUint64(out.Amount)
	}
	w.WriteUint64(tx.Fee)
	w.WriteBytes(tx.PayloadHash[:])
	w.WriteBytes(tx.SenderPubKey)
	w.WriteUint8(uint8(tx.Kind))
	return w.Bytes()
}

// SigningHash is the digest that the sender signs and that Verify checks
// the signature against: H(canonical(tx without signature)).
func (tx *SignedTransaction) SigningHash() Hash {
	return SumHash(tx.signingBytes())
}

// ComputeTxID derives the deterministic transaction id: a hash over the same
// canonical bytes as SigningHash (the signature never participates in txid).
func (tx *SignedTransaction) ComputeTxID() Hash {
	return tx.SigningHash()
}

// MintTxID synthesizes the deterministic txid for a mint transaction
// crediting a deposit: H("mint" ‖ l1_tx_hash). Deriving it directly from
// l1_tx_hash keeps at most one mint per deposit without going through the
// generic signing-bytes hash, since mint transactions are not signed by a
// sender — the node itself originates them.
func MintTxID(l1TxHash string) Hash {
	w := codec.NewWriter()
	w.WriteString("mint")
	w.WriteString(l1TxHash)
	return SumHash(w.Bytes())
}

// CanonicalBytes returns the full canonical encoding of tx for DA blob
// serialisation, including the signature (round-trip encode/decode must
// reproduce the signed transaction byte-for-byte).
func (tx *SignedTransaction) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteBytes(tx.TxID[:])
	w.WriteUint32(uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		w.WriteBytes(in.TxID[:])
		w.WriteUint32(in.OutputIndex)
	}
	w.WriteUint32(uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		w.WriteString(out.Recipient)
		w.WriteUint64(out.Amount)
	}
	w.WriteUint64(tx.Fee)
	w.WriteBytes(tx.PayloadHash[:])
	w.WriteBytes(tx.SenderPubKey)
	w.WriteBytes(tx.Signature)
	w.WriteUint8(uint8(tx.Kind))
	return w.Bytes()
}

// DecodeTransaction parses the bytes produced by CanonicalBytes.
func DecodeTransaction(b []byte) (*SignedTransaction, error) {
	r := codec.NewReader(b)
	tx := &SignedTransaction{}

	txidBytes, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	copy(tx.TxID[:], txidBytes)

	numInputs, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	tx.Inputs = make([]UTXORef, numInputs)
	for i := range tx.Inputs {
		idBytes, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		idx, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		copy(tx.Inputs[i].TxID[:], idBytes)
		tx.Inputs[i].OutputIndex = idx
	}

	numOutputs, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	tx.Outputs = make([]TxOutput, numOutputs)
	for i := range tx.Outputs {
		recipient, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		amount, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		tx.Outputs[i] = TxOutput{Recipient: recipient, Amount: amount}
	}

	fee, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	tx.Fee = fee

	payloadHashBytes, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	copy(tx.PayloadHash[:], payloadHashBytes)

	tx.SenderPubKey, err = r.ReadBytes()
	if err != nil {
		return nil, err
	}
	tx.Signature, err = r.ReadBytes()
	if err != nil {
		return nil, err
	}
	kind, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	tx.Kind = TxKind(kind)

	return tx, nil
}

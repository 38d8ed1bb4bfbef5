package ledgertypes

import "github.com/fontana-rollup/fontana/internal/codec"

// BlockHeader is the committed summary of a block.
type BlockHeader struct {
	Height       uint64
	PrevHash     Hash
	StateRoot    Hash
	TxMerkleRoot Hash
	Timestamp    int64
	TxCount      uint32
}

// CanonicalBytes encodes the header deterministically; used both to derive
// Hash() (the prev_hash of the following header) and as the header portion
// of the DA blob.
func (h *BlockHeader) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint64(h.Height)
	w.WriteBytes(h.PrevHash[:])
	w.WriteBytes(h.StateRoot[:])
	w.WriteBytes(h.TxMerkleRoot[:])
	w.WriteUint64(uint64(h.Timestamp))
	w.WriteUint32(h.TxCount)
	return w.Bytes()
}

// Hash returns H(header): the value the next block's PrevHash must equal
// so headers form a chain.
func (h *BlockHeader) Hash() Hash {
	return SumHash(h.CanonicalBytes())
}

// DecodeBlockHeader parses the bytes produced by CanonicalBytes.
func DecodeBlockHeader(b []byte) (*BlockHeader, int, error) {
	r := codec.NewReader(b)
	h := &BlockHeader{}

	height, err := r.ReadUint64()
	if err != nil {
		return nil, 0, err
	}
	h.Height = height

	prevHash, err := r.ReadBytes()
	if err != nil {
		return nil, 0, err
	}
	copy(h.PrevHash[:], prevHash)

	stateRoot, err := r.ReadBytes()
	if err != nil {
		return nil, 0, err
	}
	copy(h.StateRoot[:], stateRoot)

	txMerkleRoot, err := r.ReadBytes()
	if err != nil {
		return nil, 0, err
	}
	copy(h.TxMerkleRoot[:], txMerkleRoot)

	ts, err := r.ReadUint64()
	if err != nil {
		return nil, 0, err
	}
	h.Timestamp = int64(ts)

	txCount, err := r.ReadUint32()
	if err != nil {
		return nil, 0, err
	}
	h.TxCount = txCount

	return h, len(h.CanonicalBytes()), nil
}

// Block is a header paired with the transactions it commits to.
type Block struct {
	Header       BlockHeader
	Transactions []SignedTransaction
}

// EncodeBlob produces the data-availability blob format: canonical
// concatenation of block_header ‖ tx_count ‖ tx_1 ‖ … ‖ tx_n, each field
// length-prefixed.
func (b *Block) EncodeBlob() []byte {
	w := codec.NewWriter()
	w.WriteBytes(b.Header.CanonicalBytes())
	w.WriteUint32(uint32(len(b.Transactions)))
	for i := range b.Transactions {
		w.WriteBytes(b.Transactions[i].CanonicalBytes())
	}
	return w.Bytes()
}

// DecodeBlob parses the bytes produced by EncodeBlob.
func DecodeBlob(blob []byte) (*Block, error) {
	r := codec.NewReader(blob)

	headerBytes, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	header, _, err := DecodeBlockHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	txCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	txs := make([]SignedTransaction, txCount)
	for i := uint32(0); i < txCount; i++ {
		txBytes, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		tx, err := DecodeTransaction(txBytes)
		if err != nil {
			return nil, err
		}
		txs[i] = *tx
	}

	return &Block{Header: *header, Transactions: txs}, nil
}

// BlockRecord is the persisted form of a block. Once LocalCommitted is
// true, Header and Transactions are immutable — only DACommitted/BlobRef
// may later transition.
type BlockRecord struct {
	Header         BlockHeader
	Transactions   []SignedTransaction
	LocalCommitted bool
	DACommitted    bool
	BlobRef        string
}

package storage

import (
	"github.com/fontana-rollup/fontana/internal/codec"
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
)

func utxoKey(ref ledgertypes.UTXORef) []byte {
	w := codec.NewWriter()
	w.WriteBytes(ref.TxID[:])
	w.WriteUint32(ref.OutputIndex)
	return prefixed(bucketUTXO, w.Bytes())
}

func addressUTXOKey(recipient string, ref ledgertypes.UTXORef) []byte {
	w := codec.NewWriter()
	w.WriteString(recipient)
	w.WriteBytes(ref.TxID[:])
	w.WriteUint32(ref.OutputIndex)
	return prefixed(bucketUTXOByAddress, w.Bytes())
}

// addressPrefix is the prefix shared by every addressUTXOKey for recipient:
// the bucket tag plus the length-prefixed recipient string. Because the
// recipient field is itself length-prefixed, no other recipient's key can
// collide with this prefix regardless of either string's contents.
func addressPrefix(recipient string) []byte {
	w := codec.NewWriter()
	w.WriteString(recipient)
	return prefixed(bucketUTXOByAddress, w.Bytes())
}

func encodeUTXO(u *ledgertypes.UTXO) []byte {
	w := codec.NewWriter()
	w.WriteBytes(u.Ref.TxID[:])
	w.WriteUint32(u.Ref.OutputIndex)
	w.WriteString(u.Recipient)
	w.WriteUint64(u.Amount)
	w.WriteUint8(uint8(u.Status))
	w.WriteUint64(u.CreatedInBlock)
	if u.SpentInBlock != nil {
		w.WriteUint8(1)
		w.WriteUint64(*u.SpentInBlock)
	} else {
		w.WriteUint8(0)
	}
	return w.Bytes()
}

func decodeUTXO(b []byte) (*ledgertypes.UTXO, error) {
	r := codec.NewReader(b)
	u := &ledgertypes.UTXO{}

	txid, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	copy(u.Ref.TxID[:], txid)

	idx, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	u.Ref.OutputIndex = idx

	recipient, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	u.Recipient = recipient

	amount, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	u.Amount = amount

	status, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	u.Status = ledgertypes.UTXOStatus(status)

	createdInBlock, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	u.CreatedInBlock = createdInBlock

	hasSpent, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if hasSpent == 1 {
		spentInBlock, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		u.SpentInBlock = &spentInBlock
	}

	return u, nil
}

func encodeVaultDeposit(d *ledgertypes.VaultDeposit) []byte {
	w := codec.NewWriter()
	w.WriteString(d.L1TxHash)
	w.WriteString(d.Recipient)
	w.WriteUint64(d.Amount)
	w.WriteUint64(d.L1Height)
	if d.Processed {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
	return w.Bytes()
}

func decodeVaultDeposit(b []byte) (*ledgertypes.VaultDeposit, error) {
	r := codec.NewReader(b)
	d := &ledgertypes.VaultDeposit{}

	var err error
	if d.L1TxHash, err = r.ReadString(); err != nil {
		return nil, err
	}
	if d.Recipient, err = r.ReadString(); err != nil {
		return nil, err
	}
	if d.Amount, err = r.ReadUint64(); err != nil {
		return nil, err
	}
	if d.L1Height, err = r.ReadUint64(); err != nil {
		return nil, err
	}
	processed, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	d.Processed = processed == 1
	return d, nil
}

func encodeVaultWithdrawal(w0 *ledgertypes.VaultWithdrawal) []byte {
	w := codec.NewWriter()
	w.WriteBytes(w0.BurnTxID[:])
	w.WriteString(w0.RecipientL1)
	w.WriteUint64(w0.Amount)
	w.WriteBytes(w0.StateRootAtBurn[:])
	w.WriteBytes(w0.ProofBundle)
	w.WriteString(w0.L1TxHash)
	w.WriteUint8(uint8(w0.Status))
	return w.Bytes()
}

func decodeVaultWithdrawal(b []byte) (*ledgertypes.VaultWithdrawal, error) {
	r := codec.NewReader(b)
	w := &ledgertypes.VaultWithdrawal{}

	burnTxID, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	copy(w.BurnTxID[:], burnTxID)

	if w.RecipientL1, err = r.ReadString(); err != nil {
		return nil, err
	}
	if w.Amount, err = r.ReadUint64(); err != nil {
		return nil, err
	}
	stateRoot, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	copy(w.StateRootAtBurn[:], stateRoot)

	if w.ProofBundle, err = r.ReadBytes(); err != nil {
		return nil, err
	}
	if w.L1TxHash, err = r.ReadString(); err != nil {
		return nil, err
	}
	status, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	w.Status = ledgertypes.WithdrawalStatus(status)
	return w, nil
}

func encodeBlockRecord(rec *ledgertypes.BlockRecord) []byte {
	w := codec.NewWriter()
	w.WriteBytes(rec.Header.CanonicalBytes())
	w.WriteUint32(uint32(len(rec.Transactions)))
	for i := range rec.Transactions {
		w.WriteBytes(rec.Transactions[i].CanonicalBytes())
	}
	if rec.LocalCommitted {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
	if rec.DACommitted {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
	w.WriteString(rec.BlobRef)
	return w.Bytes()
}

func decodeBlockRecord(b []byte) (*ledgertypes.BlockRecord, error) {
	r := codec.NewReader(b)

	headerBytes, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	header, _, err := ledgertypes.DecodeBlockHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	txCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	txs := make([]ledgertypes.SignedTransaction, txCount)
	for i := uint32(0); i < txCount; i++ {
		txBytes, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		tx, err := ledgertypes.DecodeTransaction(txBytes)
		if err != nil {
			return nil, err
		}
		txs[i] = *tx
	}

	localCommitted, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	daCommitted, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	blobRef, err := r.ReadString()
	if err != nil {
		return nil, err
	}

	return &ledgertypes.BlockRecord{
		Header:         *header,
		Transactions:   txs,
		LocalCommitted: localCommitted == 1,
		DACommitted:    daCommitted == 1,
		BlobRef:        blobRef,
	}, nil
}

func heightKey(height uint64) []byte {
	w := codec.NewWriter()
	w.WriteUint64(height)
	return prefixed(bucketBlockByHeight, w.Bytes())
}

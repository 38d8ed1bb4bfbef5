package storage

import (
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// Tx is a single atomic batch of storage writes. The ledger opens one per
// applied transaction (spend inputs, create outputs, index the transaction)
// and one per sequenced block; a failure at any step rolls back everything
// written so far, so storage and the in-memory Merkle tree never diverge.
type Tx struct {
	a     accessor
	ldbTx *leveldb.Transaction
	done  bool
}

// Commit finalizes all writes made through Tx.
func (t *Tx) Commit() error {
	if t.done {
		return errors.New("storage: transaction already closed")
	}
	t.done = true
	if err := t.ldbTx.Commit(); err != nil {
		return ledgertypes.NewStorageError("commit", err)
	}
	return nil
}

// Rollback discards all writes made through Tx. Safe to call after a
// successful Commit (a no-op).
func (t *Tx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	t.ldbTx.Discard()
}

// InsertUTXO records a newly created output as unspent, plus its
// by-address secondary index entry.
func (t *Tx) InsertUTXO(u *ledgertypes.UTXO) error {
	if err := t.a.Put(utxoKey(u.Ref), encodeUTXO(u), nil); err != nil {
		return ledgertypes.NewStorageError("insert_utxo", err)
	}
	if err := t.a.Put(addressUTXOKey(u.Recipient, u.Ref), utxoKey(u.Ref)[len(bucketUTXO):], nil); err != nil {
		return ledgertypes.NewStorageError("insert_utxo", err)
	}
	return nil
}

// MarkUTXOSpent transitions an existing output to spent at spentInBlock.
// The by-address index entry is left in place; GetUnspentByAddress filters
// on status so a spent output simply stops being returned.
func (t *Tx) MarkUTXOSpent(ref ledgertypes.UTXORef, spentInBlock uint64) error {
	u, err := getUTXO(t.a, ref)
	if err != nil {
		return err
	}
	u.Status = ledgertypes.Spent
	u.SpentInBlock = &spentInBlock
	if err := t.a.Put(utxoKey(ref), encodeUTXO(u), nil); err != nil {
		return ledgertypes.NewStorageError("mark_utxo_spent", err)
	}
	return nil
}

// GetUTXO fetches a single output within the transaction's view.
func (t *Tx) GetUTXO(ref ledgertypes.UTXORef) (*ledgertypes.UTXO, error) {
	return getUTXO(t.a, ref)
}

// InsertTransaction indexes a transaction by its id.
func (t *Tx) InsertTransaction(tx *ledgertypes.SignedTransaction) error {
	key := prefixed(bucketTransaction, tx.TxID[:])
	if err := t.a.Put(key, tx.CanonicalBytes(), nil); err != nil {
		return ledgertypes.NewStorageError("insert_transaction", err)
	}
	return nil
}

// GetTransaction fetches a transaction by id.
func (t *Tx) GetTransaction(txid ledgertypes.Hash) (*ledgertypes.SignedTransaction, error) {
	raw, err := t.a.Get(prefixed(bucketTransaction, txid[:]), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ledgertypes.NewStorageError("get_transaction", err)
	}
	return ledgertypes.DecodeTransaction(raw)
}

// InsertBlock persists a freshly sequenced block, indexed both by height and
// by header hash (header hash -> height key). No function in this package
// reads the hash index; lookups go by height.
func (t *Tx) InsertBlock(rec *ledgertypes.BlockRecord) error {
	encoded := encodeBlockRecord(rec)
	if err := t.a.Put(heightKey(rec.Header.Height), encoded, nil); err != nil {
		return ledgertypes.NewStorageError("insert_block", err)
	}
	hash := rec.Header.Hash()
	if err := t.a.Put(prefixed(bucketBlockHashToHeight, hash[:]), heightKey(rec.Header.Height), nil); err != nil {
		return ledgertypes.NewStorageError("insert_block", err)
	}
	return nil
}

// InsertVaultDeposit records a new deposit event. Returns ErrAlreadyExists
// if L1TxHash has already been ingested, so bridge
// handling stays idempotent under event redelivery.
func (t *Tx) InsertVaultDeposit(d *ledgertypes.VaultDeposit) error {
	key := prefixed(bucketVaultDeposit, []byte(d.L1TxHash))
	exists, err := t.a.Has(key, nil)
	if err != nil {
		return ledgertypes.NewStorageError("insert_vault_deposit", err)
	}
	if exists {
		return ErrAlreadyExists
	}
	if err := t.a.Put(key, encodeVaultDeposit(d), nil); err != nil {
		return ledgertypes.NewStorageError("insert_vault_deposit", err)
	}
	return nil
}

// MarkVaultDepositProcessed flips Processed on an already-inserted deposit.
// Unlike InsertVaultDeposit this overwrites unconditionally: it is called
// only after the deposit's mint transaction has itself been durably
// applied, so there is no idempotency race left to guard against here.
func (t *Tx) MarkVaultDepositProcessed(l1TxHash string) error {
	key := prefixed(bucketVaultDeposit, []byte(l1TxHash))
	raw, err := t.a.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return ErrNotFound
		}
		return ledgertypes.NewStorageError("mark_vault_deposit_processed", err)
	}
	d, err := decodeVaultDeposit(raw)
	if err != nil {
		return ledgertypes.NewStorageError("mark_vault_deposit_processed", err)
	}
	d.Processed = true
	if err := t.a.Put(key, encodeVaultDeposit(d), nil); err != nil {
		return ledgertypes.NewStorageError("mark_vault_deposit_processed", err)
	}
	return nil
}

// GetVaultDeposit looks up a deposit by its L1 transaction hash.
func (t *Tx) GetVaultDeposit(l1TxHash string) (*ledgertypes.VaultDeposit, error) {
	raw, err := t.a.Get(prefixed(bucketVaultDeposit, []byte(l1TxHash)), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ledgertypes.NewStorageError("get_vault_deposit", err)
	}
	return decodeVaultDeposit(raw)
}

// UpsertVaultWithdrawal writes or overwrites a withdrawal record, keyed by
// its burn transaction id.
func (t *Tx) UpsertVaultWithdrawal(w *ledgertypes.VaultWithdrawal) error {
	key := prefixed(bucketVaultWithdrawal, w.BurnTxID[:])
	if err := t.a.Put(key, encodeVaultWithdrawal(w), nil); err != nil {
		return ledgertypes.NewStorageError("upsert_vault_withdrawal", err)
	}
	return nil
}

// GetVaultWithdrawal looks up a withdrawal by its burn transaction id.
func (t *Tx) GetVaultWithdrawal(burnTxID ledgertypes.Hash) (*ledgertypes.VaultWithdrawal, error) {
	raw, err := t.a.Get(prefixed(bucketVaultWithdrawal, burnTxID[:]), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ledgertypes.NewStorageError("get_vault_withdrawal", err)
	}
	return decodeVaultWithdrawal(raw)
}

// GetSystemVar reads a named system variable within the transaction's view.
func (t *Tx) GetSystemVar(name string) ([]byte, error) {
	raw, err := t.a.Get(prefixed(bucketSystemVar, []byte(name)), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ledgertypes.NewStorageError("get_system_var", err)
	}
	return raw, nil
}

// SetSystemVar writes a named system variable as part of the transaction.
func (t *Tx) SetSystemVar(name string, value []byte) error {
	if err := t.a.Put(prefixed(bucketSystemVar, []byte(name)), value, nil); err != nil {
		return ledgertypes.NewStorageError("set_system_var", err)
	}
	return nil
}

// ErrAlreadyExists is returned by InsertVaultDeposit for a duplicate
// L1TxHash.
var ErrAlreadyExists = errors.New("storage: already exists")

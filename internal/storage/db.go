package storage

import (
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound mirrors leveldb.ErrNotFound so callers never need to import
// goleveldb directly to test for a missing key.
var ErrNotFound = leveldb.ErrNotFound

// accessor is the subset of *leveldb.DB and *leveldb.Transaction this
// package needs. Implementing domain operations against the interface lets
// the same code run either against the live database or inside a
// transaction, the way daglabs-btcd's DataAccessor separates the database
// handle from its transaction type.
type accessor interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	Has(key []byte, ro *opt.ReadOptions) (bool, error)
	Put(key, value []byte, wo *opt.WriteOptions) error
	Delete(key []byte, wo *opt.WriteOptions) error
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// Store is the handle to the node's on-disk state: live UTXOs, the
// transaction and block indexes, and the vault deposit/withdrawal logs.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) a Store at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, ledgertypes.NewStorageError("open", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts a new transaction. Every mutation the ledger makes while
// applying a transaction or committing a block goes through one Tx so a
// failure partway through rolls back everything, never a partial write.
func (s *Store) Begin() (*Tx, error) {
	ldbTx, err := s.db.OpenTransaction()
	if err != nil {
		return nil, ledgertypes.NewStorageError("begin", err)
	}
	return &Tx{a: ldbTx, ldbTx: ldbTx}, nil
}

func newCursorOn(a accessor, bucket []byte) *cursor {
	it := a.NewIterator(bucketRange(bucket), nil)
	return newCursor(it, bucket)
}

// GetUnspentByAddress returns every unspent output credited to recipient, in
// no particular order. It is read-only and reads the live database handle
// rather than an open Tx, so it sees only writes a Tx has already committed.
func (s *Store) GetUnspentByAddress(recipient string) ([]*ledgertypes.UTXO, error) {
	return getUnspentByAddress(s.db, recipient)
}

func getUnspentByAddress(a accessor, recipient string) ([]*ledgertypes.UTXO, error) {
	c := newCursorOn(a, addressPrefix(recipient))
	defer c.Close()

	var out []*ledgertypes.UTXO
	for ok := c.First(); ok; ok = c.Next() {
		primaryKey := prefixed(bucketUTXO, c.Value())
		raw, err := a.Get(primaryKey, nil)
		if err != nil {
			return nil, ledgertypes.NewStorageError("get_unspent_by_address", err)
		}
		u, err := decodeUTXO(raw)
		if err != nil {
			return nil, ledgertypes.NewStorageError("get_unspent_by_address", err)
		}
		if u.Status == ledgertypes.Unspent {
			out = append(out, u)
		}
	}
	if err := c.Error(); err != nil {
		return nil, ledgertypes.NewStorageError("get_unspent_by_address", err)
	}
	return out, nil
}

// GetUTXO fetches a single output by reference.
func (s *Store) GetUTXO(ref ledgertypes.UTXORef) (*ledgertypes.UTXO, error) {
	return getUTXO(s.db, ref)
}

func getUTXO(a accessor, ref ledgertypes.UTXORef) (*ledgertypes.UTXO, error) {
	raw, err := a.Get(utxoKey(ref), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ledgertypes.NewStorageError("get_utxo", err)
	}
	return decodeUTXO(raw)
}

// AllUnspent returns every unspent output in the store regardless of
// recipient. Used by ledger.New to rebuild the sparse Merkle tree from the
// UTXO table alone on startup.
func (s *Store) AllUnspent() ([]*ledgertypes.UTXO, error) {
	c := newCursorOn(s.db, bucketUTXO)
	defer c.Close()

	var out []*ledgertypes.UTXO
	for ok := c.First(); ok; ok = c.Next() {
		u, err := decodeUTXO(c.Value())
		if err != nil {
			return nil, ledgertypes.NewStorageError("all_unspent", err)
		}
		if u.Status == ledgertypes.Unspent {
			out = append(out, u)
		}
	}
	if err := c.Error(); err != nil {
		return nil, ledgertypes.NewStorageError("all_unspent", err)
	}
	return out, nil
}

// GetLatestBlock returns the highest-height committed block, or ErrNotFound
// if none has been sequenced yet.
func (s *Store) GetLatestBlock() (*ledgertypes.BlockRecord, error) {
	c := newCursorOn(s.db, bucketBlockByHeight)
	defer c.Close()

	var latest []byte
	for ok := c.First(); ok; ok = c.Next() {
		latest = append([]byte{}, c.Value()...)
	}
	if err := c.Error(); err != nil {
		return nil, ledgertypes.NewStorageError("get_latest_block", err)
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return decodeBlockRecord(latest)
}

// GetBlockHeader returns the header at height.
func (s *Store) GetBlockHeader(height uint64) (*ledgertypes.BlockHeader, error) {
	raw, err := s.db.Get(heightKey(height), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ledgertypes.NewStorageError("get_block_header", err)
	}
	rec, err := decodeBlockRecord(raw)
	if err != nil {
		return nil, err
	}
	return &rec.Header, nil
}

// FetchUncommittedBlocks returns every block with DACommitted false, in
// ascending height order, for the DA poster to submit.
func (s *Store) FetchUncommittedBlocks() ([]*ledgertypes.BlockRecord, error) {
	c := newCursorOn(s.db, bucketBlockByHeight)
	defer c.Close()

	var out []*ledgertypes.BlockRecord
	for ok := c.First(); ok; ok = c.Next() {
		rec, err := decodeBlockRecord(c.Value())
		if err != nil {
			return nil, ledgertypes.NewStorageError("fetch_uncommitted_blocks", err)
		}
		if !rec.DACommitted {
			out = append(out, rec)
		}
	}
	if err := c.Error(); err != nil {
		return nil, ledgertypes.NewStorageError("fetch_uncommitted_blocks", err)
	}
	return out, nil
}

// MarkBlockDACommitted flips DACommitted/BlobRef for height outside the
// core writer's critical section: the DA poster owns this write set
// exclusively and never touches ledger state.
func (s *Store) MarkBlockDACommitted(height uint64, blobRef string) error {
	key := heightKey(height)
	raw, err := s.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return ErrNotFound
		}
		return ledgertypes.NewStorageError("mark_block_da_committed", err)
	}
	rec, err := decodeBlockRecord(raw)
	if err != nil {
		return ledgertypes.NewStorageError("mark_block_da_committed", err)
	}
	rec.DACommitted = true
	rec.BlobRef = blobRef
	if err := s.db.Put(key, encodeBlockRecord(rec), nil); err != nil {
		return ledgertypes.NewStorageError("mark_block_da_committed", err)
	}
	return nil
}

// GetSystemVar reads a named system variable (e.g. chain_id, genesis_loaded).
func (s *Store) GetSystemVar(name string) ([]byte, error) {
	raw, err := s.db.Get(prefixed(bucketSystemVar, []byte(name)), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ledgertypes.NewStorageError("get_system_var", err)
	}
	return raw, nil
}

// SetSystemVar writes a named system variable directly, outside of any
// ledger transaction (used by the DA poster for its last_da_height_posted
// watermark; genesis bootstrap writes its vars through Tx.SetSystemVar).
func (s *Store) SetSystemVar(name string, value []byte) error {
	if err := s.db.Put(prefixed(bucketSystemVar, []byte(name)), value, nil); err != nil {
		return ledgertypes.NewStorageError("set_system_var", err)
	}
	return nil
}

// Package genesis loads the declarative initial UTXO set and chain ID that
// seeds height 0. Loading is single-shot (guarded by a system_vars flag)
// and failure-atomic: either every genesis UTXO and the height-0 block
// record land together, or none of them do.
package genesis

import (
	"encoding/json"
	"os"

	"github.com/fontana-rollup/fontana/internal/codec"
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/fontana-rollup/fontana/internal/merkle"
	"github.com/fontana-rollup/fontana/internal/storage"
	"github.com/fontana-rollup/fontana/internal/telemetry"
	"github.com/pkg/errors"
)

var log = telemetry.Get(telemetry.NODE)

const loadedVar = "genesis_loaded"
const chainIDVar = "chain_id"

// UTXOSpec is one declared genesis output.
type UTXOSpec struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

// File is the on-disk genesis declaration.
type File struct {
	ChainID string     `json:"chain_id"`
	UTXOs   []UTXOSpec `json:"utxos"`
}

// Load parses path and, if genesis has not already been loaded into store,
// atomically inserts the declared UTXOs and the height-0 BlockRecord. If
// genesis was already loaded (a restart), Load is a no-op and returns the
// existing height-0 header. Returns the genesis header either way.
func Load(store *storage.Store, path string) (*ledgertypes.BlockHeader, error) {
	if existing, err := store.GetSystemVar(loadedVar); err == nil && len(existing) > 0 {
		header, err := store.GetBlockHeader(0)
		if err != nil {
			return nil, errors.Wrap(err, "genesis previously loaded but height-0 block is missing")
		}
		return header, nil
	} else if err != nil && err != storage.ErrNotFound {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading genesis file")
	}
	var file File
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "parsing genesis file")
	}
	if file.ChainID == "" {
		return nil, errors.New("genesis: chain_id must not be empty")
	}

	tree := merkle.NewTree(1)

	stx, err := store.Begin()
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			stx.Rollback()
		}
	}()

	for i, spec := range file.UTXOs {
		ref := ledgertypes.UTXORef{TxID: genesisTxID(uint32(i)), OutputIndex: 0}
		u := &ledgertypes.UTXO{
			Ref:            ref,
			Recipient:      spec.Recipient,
			Amount:         spec.Amount,
			Status:         ledgertypes.Unspent,
			CreatedInBlock: 0,
		}
		if err := stx.InsertUTXO(u); err != nil {
			return nil, err
		}
		tree.Put(ref.MerkleKey(), u.LeafHash())
	}

	stateRoot := tree.CommitBlock(0)
	header := ledgertypes.BlockHeader{
		Height:       0,
		PrevHash:     ledgertypes.Hash{},
		StateRoot:    stateRoot,
		TxMerkleRoot: ledgertypes.Hash{},
		Timestamp:    0,
		TxCount:      0,
	}
	rec := &ledgertypes.BlockRecord{Header: header, LocalCommitted: true}
	if err := stx.InsertBlock(rec); err != nil {
		return nil, err
	}
	if err := stx.SetSystemVar(chainIDVar, []byte(file.ChainID)); err != nil {
		return nil, err
	}
	if err := stx.SetSystemVar(loadedVar, []byte{1}); err != nil {
		return nil, err
	}

	if err := stx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	log.WithField("chain_id", file.ChainID).WithField("utxo_count", len(file.UTXOs)).Info("loaded genesis")
	return &header, nil
}

// genesisTxID deterministically derives a distinct synthetic txid for the
// i-th declared genesis output.
func genesisTxID(i uint32) ledgertypes.Hash {
	w := codec.NewWriter()
	w.WriteString("genesis")
	w.WriteUint32(i)
	return ledgertypes.SumHash(w.Bytes())
}

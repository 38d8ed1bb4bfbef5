// Package merkle implements a sparse Merkle commitment over the live UTXO
// set: a 256-level tree keyed by 32-byte hashes, with a canonical null-hash
// standing in for every empty slot so the root can be computed without ever
// materialising the full 2^256 leaf space — only populated leaves (and the
// handful of internal nodes on their paths) are visited.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"sort"
	"sync"

	"github.com/fontana-rollup/fontana/internal/ledgertypes"
)

const depth = 256

type nodeHash = ledgertypes.Hash

// defaultHash[h] is the root of an empty subtree of height h (h=0 is a
// single empty leaf, h=depth is the root of a wholly empty tree).
var defaultHash [depth + 1]nodeHash

func init() {
	defaultHash[0] = nodeHash{} // the canonical null-hash
	for h := 1; h <= depth; h++ {
		defaultHash[h] = hashPair(defaultHash[h-1], defaultHash[h-1])
	}
}

func hashPair(l, r nodeHash) nodeHash {
	var buf [64]byte
	copy(buf[:32], l[:])
	copy(buf[32:], r[:])
	return sha256.Sum256(buf[:])
}

func bitAt(h nodeHash, bitIndex int) byte {
	byteIndex := bitIndex / 8
	shift := uint(7 - bitIndex%8)
	return (h[byteIndex] >> shift) & 1
}

// Tree is the live, writer-exclusive sparse Merkle state plus a bounded
// history of recent roots, retained so historical proofs can still be
// produced for UTXOs spent or burned since. Each method takes the tree's
// lock, but the live version is owned by the ledger's single core writer:
// the per-block journal assumes one writer's mutations between CommitBlock
// calls.
type Tree struct {
	mu     sync.RWMutex
	leaves map[nodeHash]nodeHash // non-default leaves only

	dirty map[nodeHash]nodeHash // key -> leaf value observed at the start of the in-flight block

	retain    int
	snapshots []snapshot   // ascending height, bounded to retain
	deltas    []blockDelta // ascending height, parallel to snapshots
}

type snapshot struct {
	height uint64
	root   nodeHash
}

type leafChange struct {
	key nodeHash
	old nodeHash // value before this block (default-zero sentinel if it didn't exist)
}

type blockDelta struct {
	height  uint64
	changes []leafChange
}

// NewTree constructs an empty tree retaining up to historicalRootsKept past
// snapshots for proof generation.
func NewTree(historicalRootsKept int) *Tree {
	if historicalRootsKept < 1 {
		historicalRootsKept = 1
	}
	return &Tree{
		leaves: make(map[nodeHash]nodeHash),
		dirty:  make(map[nodeHash]nodeHash),
		retain: historicalRootsKept,
	}
}

// Put sets the leaf at key, recording its prior value the first time it is
// touched in the in-flight block so CommitBlock can journal the delta.
func (t *Tree) Put(key, leaf nodeHash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markDirtyLocked(key)
	if leaf == (nodeHash{}) {
		delete(t.leaves, key)
		return
	}
	t.leaves[key] = leaf
}

// Delete removes the leaf at key; a no-op if key was already empty.
// Equivalent to Put(key, null-hash).
func (t *Tree) Delete(key nodeHash) {
	t.Put(key, nodeHash{})
}

func (t *Tree) markDirtyLocked(key nodeHash) {
	if _, ok := t.dirty[key]; ok {
		return
	}
	old, ok := t.leaves[key]
	if !ok {
		old = nodeHash{}
	}
	t.dirty[key] = old
}

func (t *Tree) sortedKeysLocked() []nodeHash {
	keys := make([]nodeHash, 0, len(t.leaves))
	for k := range t.leaves {
		keys = append(keys, k)
	}
	sortNodeHashes(keys)
	return keys
}

// sortNodeHashes orders keys for deterministic tree traversal.
func sortNodeHashes(keys []nodeHash) {
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
}

func computeNode(keys []nodeHash, values map[nodeHash]nodeHash, bitIndex int) nodeHash {
	remaining := depth - bitIndex
	if len(keys) == 0 {
		return defaultHash[remaining]
	}
	if remaining == 0 {
		return values[keys[0]]
	}
	var left, right []nodeHash
	for _, k := range keys {
		if bitAt(k, bitIndex) == 0 {
			left = append(left, k)
		} else {
			right = append(right, k)
		}
	}
	return hashPair(computeNode(left, values, bitIndex+1), computeNode(right, values, bitIndex+1))
}

// Root returns the current live state root over the set of unspent UTXOs,
// once the ledger has applied leaves consistently with the live UTXO table.
func (t *Tree) Root() nodeHash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return computeNode(t.sortedKeysLocked(), t.leaves, 0)
}

// Leaf returns the current leaf value at key (the null-hash if key is
// unset), without walking the tree. Used by callers that need to undo a
// partial set of mutations: capture Leaf(key) before touching key, restore
// it with Put on failure.
func (t *Tree) Leaf(key nodeHash) nodeHash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.leaves[key]
}

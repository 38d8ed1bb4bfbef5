package merkle

import (
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/pkg/errors"
)

// ErrSnapshotNotRetained is returned when a proof is requested against a
// root older than the retention window.
var ErrSnapshotNotRetained = errors.New("merkle: snapshot not retained")

// Proof is a fixed-order sibling path from leaf to root.
type Proof struct {
	Leaf     ledgertypes.Hash
	Siblings []ledgertypes.Hash
	Key      ledgertypes.Hash
	Root     ledgertypes.Hash
}

func proveNode(keys []nodeHash, values map[nodeHash]nodeHash, bitIndex int, target nodeHash, siblings *[]nodeHash) nodeHash {
	remaining := depth - bitIndex
	if len(keys) == 0 {
		// The target path runs through a wholly empty subtree: every
		// deeper sibling along it is the default hash of its height.
		// Padding them keeps exclusion proofs at the fixed depth length
		// Verify demands.
		for h := 0; h < remaining; h++ {
			*siblings = append(*siblings, defaultHash[h])
		}
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
	if bitAt(target, bitIndex) == 0 {
		lh := proveNode(left, values, bitIndex+1, target, siblings)
		rh := computeNode(right, values, bitIndex+1)
		*siblings = append(*siblings, rh)
		return hashPair(lh, rh)
	}
	rh := proveNode(right, values, bitIndex+1, target, siblings)
	lh := computeNode(left, values, bitIndex+1)
	*siblings = append(*siblings, lh)
	return hashPair(lh, rh)
}

// Prove returns the inclusion/exclusion proof for key against the tree's
// current live state.
func (t *Tree) Prove(key nodeHash) Proof {
	t.mu.RLock()
	defer t.mu.RUnlock()
	siblings := make([]nodeHash, 0, depth)
	root := proveNode(t.sortedKeysLocked(), t.leaves, 0, key, &siblings)
	leaf, ok := t.leaves[key]
	if !ok {
		leaf = nodeHash{}
	}
	return Proof{Leaf: leaf, Siblings: siblings, Key: key, Root: root}
}

// Verify checks a proof against an expected root. Mutating root, leaf, key,
// or any sibling makes it return false.
func Verify(root, key, leaf ledgertypes.Hash, siblings []ledgertypes.Hash) bool {
	if len(siblings) != depth {
		return false
	}
	cur := leaf
	for i, sib := range siblings {
		bitIndex := depth - 1 - i
		if bitAt(key, bitIndex) == 0 {
			cur = hashPair(cur, sib)
		} else {
			cur = hashPair(sib, cur)
		}
	}
	return cur == root
}

// CommitBlock snapshots the tree after a block has been fully applied: it
// records (height, root) and journals the (key, oldLeaf) deltas touched
// since the previous CommitBlock, so historical proofs can be reconstructed
// by replaying the journal backward. Snapshots beyond historicalRootsKept
// are dropped, oldest first.
func (t *Tree) CommitBlock(height uint64) ledgertypes.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()

	root := computeNode(t.sortedKeysLocked(), t.leaves, 0)

	changes := make([]leafChange, 0, len(t.dirty))
	for k, old := range t.dirty {
		changes = append(changes, leafChange{key: k, old: old})
	}
	t.dirty = make(map[nodeHash]nodeHash)

	t.snapshots = append(t.snapshots, snapshot{height: height, root: root})
	t.deltas = append(t.deltas, blockDelta{height: height, changes: changes})

	if len(t.snapshots) > t.retain {
		drop := len(t.snapshots) - t.retain
		t.snapshots = t.snapshots[drop:]
		t.deltas = t.deltas[drop:]
	}

	return root
}

// RootAt returns the retained root for height, or ErrSnapshotNotRetained if
// it has fallen out of the retention window (or was never committed).
func (t *Tree) RootAt(height uint64) (ledgertypes.Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.snapshots {
		if s.height == height {
			return s.root, nil
		}
	}
	return ledgertypes.Hash{}, ErrSnapshotNotRetained
}

// HeightForRoot finds the retained snapshot height whose root equals root.
// Used to resolve an external caller's historical-root reference (e.g. a
// withdrawal's recorded state_root_at_burn) back into a height ProveAt can
// replay against.
func (t *Tree) HeightForRoot(root ledgertypes.Hash) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.snapshots {
		if s.root == root {
			return s.height, true
		}
	}
	return 0, false
}

// ProveAt reconstructs the leaf set as of height (by undoing journaled
// deltas for every later block on a private copy of the live leaves) and
// produces a proof against that historical state. Returns
// ErrSnapshotNotRetained if height has been evicted from the retention
// window.
func (t *Tree) ProveAt(key nodeHash, height uint64) (Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var target *snapshot
	for i := range t.snapshots {
		if t.snapshots[i].height == height {
			target = &t.snapshots[i]
			break
		}
	}
	if target == nil {
		return Proof{}, ErrSnapshotNotRetained
	}

	reconstructed := make(map[nodeHash]nodeHash, len(t.leaves))
	for k, v := range t.leaves {
		reconstructed[k] = v
	}
	// Undo every block strictly newer than height, most recent first.
	for i := len(t.deltas) - 1; i >= 0; i-- {
		d := t.deltas[i]
		if d.height <= height {
			break
		}
		for _, c := range d.changes {
			if c.old == (nodeHash{}) {
				delete(reconstructed, c.key)
			} else {
				reconstructed[c.key] = c.old
			}
		}
	}

	keys := make([]nodeHash, 0, len(reconstructed))
	for k := range reconstructed {
		keys = append(keys, k)
	}
	sortNodeHashes(keys)

	siblings := make([]nodeHash, 0, depth)
	root := proveNode(keys, reconstructed, 0, key, &siblings)
	if root != target.root {
		return Proof{}, errors.Errorf("merkle: reconstructed root at height %d does not match retained snapshot", height)
	}
	leaf, ok := reconstructed[key]
	if !ok {
		leaf = nodeHash{}
	}
	return Proof{Leaf: leaf, Siblings: siblings, Key: key, Root: root}, nil
}

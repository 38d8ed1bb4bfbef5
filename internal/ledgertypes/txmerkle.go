package ledgertypes

// ComputeTxMerkleRoot folds a block's transactions (in selection order) into
// a single commitment: the standard pairwise-hash binary tree, duplicating
// the final element on an odd level, the way header-chain systems commit to
// their transaction set without needing the sparse UTXO tree's full proof
// machinery. An empty block's root is the null hash.
func ComputeTxMerkleRoot(txs []SignedTransaction) Hash {
	if len(txs) == 0 {
		return Hash{}
	}
	level := make([]Hash, len(txs))
	for i := range txs {
		level[i] = txs[i].TxID
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := 0; i < len(next); i++ {
			var buf [2 * HashSize]byte
			copy(buf[:HashSize], level[2*i][:])
			copy(buf[HashSize:], level[2*i+1][:])
			next[i] = SumHash(buf[:])
		}
		level = next
	}
	return level[0]
}

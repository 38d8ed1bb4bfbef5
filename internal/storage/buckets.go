// Package storage is the transactional key-value layer backing the ledger,
// block index, and bridge event log. It wraps goleveldb with bucket-prefixed
// keys the way daglabs-btcd's ffldb wraps its own leveldb handle: every
// table lives under a short prefix so a single physical database can hold
// utxos, transactions, blocks, and vault state side by side.
package storage

// Bucket prefixes. Each is short and ends in "/", and none is a prefix of
// another, so a prefix scan over one bucket never reaches into a different
// bucket.
var (
	bucketUTXO              = []byte("u/")
	bucketUTXOByAddress     = []byte("ua/")
	bucketTransaction       = []byte("tx/")
	bucketBlockByHeight     = []byte("bh/")
	bucketBlockHashToHeight = []byte("bi/")
	bucketVaultDeposit      = []byte("dep/")
	bucketVaultWithdrawal   = []byte("wd/")
	bucketSystemVar         = []byte("sv/")
)

func prefixed(bucket, key []byte) []byte {
	out := make([]byte, 0, len(bucket)+len(key))
	out = append(out, bucket...)
	out = append(out, key...)
	return out
}

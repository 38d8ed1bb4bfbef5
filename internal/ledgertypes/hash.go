// Package ledgertypes holds the wire-level data model shared by the ledger,
// sequencer, DA poster, bridge and recovery components: UTXOs, signed
// transactions, block headers/records, vault events, and the canonical
// encodings and error taxonomy tying them together.
package ledgertypes

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSize is the width of a Fontana hash in bytes.
const HashSize = 32

// Hash is a SHA-256 digest. The zero Hash is the distinguished "null" value
// used for the genesis header's prev_hash and for empty Merkle leaves.
type Hash [HashSize]byte

// String returns the lower-case hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// SumHash returns SHA-256(b) as a Hash.
func SumHash(b []byte) Hash {
	return sha256.Sum256(b)
}

// HashFromHex decodes a hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != HashSize {
		return h, errBadHashLength
	}
	copy(h[:], b)
	return h, nil
}

package da

import (
	"encoding/hex"

	"github.com/fontana-rollup/fontana/internal/codec"
	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/pkg/errors"
)

// NamespaceSize is the DA layer's fixed namespace identifier width in bytes.
const NamespaceSize = 8

// Namespace is an 8-byte DA namespace identifier.
type Namespace [NamespaceSize]byte

// String returns the lower-case hex encoding of ns.
func (ns Namespace) String() string {
	return hex.EncodeToString(ns[:])
}

// ErrInvalidBaseNamespace is returned when a configured base namespace is
// not a valid 16-hex-character string.
var ErrInvalidBaseNamespace = errors.New("da: base namespace must be a 16-character hex string")

// ParseBaseNamespace validates and decodes the configured base namespace.
// Rejected at startup per §9's namespace derivation design note.
func ParseBaseNamespace(hexStr string) (Namespace, error) {
	var ns Namespace
	if len(hexStr) != NamespaceSize*2 {
		return ns, ErrInvalidBaseNamespace
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return ns, errors.Wrap(ErrInvalidBaseNamespace, err.Error())
	}
	copy(ns[:], b)
	return ns, nil
}

// DeriveNamespace computes the per-block namespace: hash(base ‖ height)
// truncated to NamespaceSize bytes. Deterministic so recovery can compute
// the same namespace sequence a live node posted to.
func DeriveNamespace(base Namespace, height uint64) Namespace {
	w := codec.NewWriter()
	w.WriteBytes(base[:])
	w.WriteUint64(height)
	digest := ledgertypes.SumHash(w.Bytes())
	var ns Namespace
	copy(ns[:], digest[:NamespaceSize])
	return ns
}

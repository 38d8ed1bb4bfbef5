// Package sign is the node-side half of transaction authentication: the
// node only verifies. Signing happens in the wallet, an external
// collaborator; the KeyPair type here signs only so tests can build signed
// transactions.
package sign

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/fontana-rollup/fontana/internal/ledgertypes"
	"github.com/kaspanet/go-secp256k1"
	"github.com/pkg/errors"
)

// ErrMalformedPubKey is returned when a sender_pubkey does not parse as a
// serialized secp256k1 point.
var ErrMalformedPubKey = errors.New("sign: malformed public key")

// ErrMalformedSignature is returned when a signature is not a 64-byte
// Schnorr signature.
var ErrMalformedSignature = errors.New("sign: malformed signature")

// Verify checks that sig is a valid secp256k1/Schnorr signature by
// pubKeyBytes (33-byte compressed form) over hash.
func Verify(pubKeyBytes []byte, sig []byte, hash ledgertypes.Hash) (bool, error) {
	pubKey, err := secp256k1.DeserializeSchnorrPubKey(pubKeyBytes)
	if err != nil {
		return false, errors.Wrap(ErrMalformedPubKey, err.Error())
	}
	signature, err := secp256k1.DeserializeSchnorrSignatureFromSlice(sig)
	if err != nil {
		return false, errors.Wrap(ErrMalformedSignature, err.Error())
	}
	secpHash := secp256k1.Hash(hash)
	return pubKey.SchnorrVerify(&secpHash, signature), nil
}

// Address derives the recipient/sender address bound to a public key:
// hex(SHA-256(compressed pubkey)).
func Address(pubKeyBytes []byte) string {
	sum := sha256.Sum256(pubKeyBytes)
	return hex.EncodeToString(sum[:])
}

// KeyPair is a convenience wrapper used by tests to sign transactions the
// way an external wallet would, without pulling wallet logic into the node.
type KeyPair struct {
	priv *secp256k1.PrivateKey
}

// NewKeyPair deterministically derives a KeyPair from seed (test-only: real
// keys are held by clients and never touch the node). Panics if seed is not
// a valid private key scalar.
func NewKeyPair(seed [32]byte) *KeyPair {
	priv, err := secp256k1.DeserializePrivateKeyFromSlice(seed[:])
	if err != nil {
		panic("sign: seed is not a valid private key: " + err.Error())
	}
	return &KeyPair{priv: priv}
}

// PubKeyCompressed returns the 33-byte compressed public key.
func (k *KeyPair) PubKeyCompressed() []byte {
	pubKey, err := k.priv.SchnorrPublicKey()
	if err != nil {
		panic("sign: deriving public key: " + err.Error())
	}
	serialized, err := pubKey.SerializeCompressed()
	if err != nil {
		panic("sign: serializing public key: " + err.Error())
	}
	return serialized
}

// Address returns this key pair's derived address.
func (k *KeyPair) Address() string {
	return Address(k.PubKeyCompressed())
}

// Sign produces a 64-byte Schnorr signature over hash.
func (k *KeyPair) Sign(hash ledgertypes.Hash) []byte {
	secpHash := secp256k1.Hash(hash)
	sig, err := k.priv.SchnorrSign(&secpHash)
	if err != nil {
		panic("sign: signing: " + err.Error())
	}
	return sig.Serialize()[:]
}

// Package crypto defines the cryptographic primitives needed by the ledger:
// identities, signatures and hashing.
package crypto

import (
	"encoding"
	"hash"
)

// PublicKey is a public identity that can be used to verify a signature. It
// is the identity of an account on the ledger.
type PublicKey interface {
	encoding.BinaryMarshaler
	encoding.TextMarshaler

	// Verify returns nil if the signature matches the message for this
	// public key.
	Verify(msg []byte, signature []byte) error

	// Equal returns true when the other object is the same public key.
	Equal(other interface{}) bool
}

// Signer provides the primitives to sign messages with a long-lived
// identity key.
type Signer interface {
	// GetPublicKey returns the public part of the key pair.
	GetPublicKey() PublicKey

	// Sign returns the signature of the message.
	Sign(msg []byte) ([]byte, error)
}

// HashFactory is an interface to produce a hash digest.
type HashFactory interface {
	New() hash.Hash
}

// RandGenerator is an interface to generate random values with a
// well-defined implementation.
type RandGenerator interface {
	Read(buffer []byte) (int, error)
}

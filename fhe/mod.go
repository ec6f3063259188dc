// Package fhe defines the ciphertext handle model and the capability
// interface of the homomorphic coprocessor.
//
// A handle is an opaque reference to an encrypted value hosted by the
// coprocessor. The ledger only ever moves handles around: no plaintext is
// visible to the contract code. The coprocessor is trusted to perform the
// arithmetic on the underlying ciphertexts and to verify that submitted
// inputs come with a valid proof of correct encryption.
package fhe

import (
	"encoding/hex"

	"go.dedis.ch/arena/crypto"
	"golang.org/x/xerrors"
)

// HandleLen is the size in bytes of a ciphertext handle.
const HandleLen = 32

// Handle is an opaque reference to an encrypted value. Equality of handles
// is identity of the ciphertext, not of the plaintext. The all-zero handle
// is the placeholder for a value that has never been produced and is never
// decryptable.
type Handle [HandleLen]byte

// NewHandle converts a slice of bytes to a handle. It returns an error if
// the length does not match.
func NewHandle(data []byte) (Handle, error) {
	var h Handle

	if len(data) != HandleLen {
		return h, xerrors.Errorf("invalid handle length %d", len(data))
	}

	copy(h[:], data)

	return h, nil
}

// Bytes returns the byte representation of the handle.
func (h Handle) Bytes() []byte {
	return append([]byte{}, h[:]...)
}

// IsZero returns true when the handle is the placeholder.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// String implements fmt.Stringer. It returns a short hexadecimal
// representation of the handle.
func (h Handle) String() string {
	return hex.EncodeToString(h[:8])
}

// Type is the logical plaintext type bound to a handle.
type Type byte

const (
	// Uint32 is the type of a handle encrypting a 32-bit unsigned integer.
	Uint32 Type = iota

	// Bool is the type of a handle encrypting a boolean flag.
	Bool
)

// Coprocessor provides the homomorphic operations available to the ledger.
// Every operation returns a fresh handle; none of them exposes a plaintext.
type Coprocessor interface {
	// GetInstance returns the identifier of the ledger instance the
	// coprocessor is bound to. Handles are only valid for that instance.
	GetInstance() []byte

	// EncryptUint32 mints a handle encrypting a public constant.
	EncryptUint32(value uint32) (Handle, error)

	// VerifyInput checks that the proof attests the handle is a well-formed
	// encryption of an in-range value submitted by the identity for this
	// instance. It never reveals the plaintext.
	VerifyInput(h Handle, proof []byte, ident crypto.PublicKey) error

	// RandUint32 mints a handle encrypting a value uniformly distributed in
	// [0, max), derived from the coprocessor's encrypted entropy source and
	// the salt. Two calls with different salts never return the same
	// handle.
	RandUint32(max uint32, salt []byte) (Handle, error)

	// Add returns a handle encrypting the sum of the two operands.
	Add(a, b Handle) (Handle, error)

	// Sub returns a handle encrypting the difference of the two operands.
	Sub(a, b Handle) (Handle, error)

	// Eq returns a boolean handle encrypting whether the operands hold the
	// same plaintext.
	Eq(a, b Handle) (Handle, error)

	// Select returns a handle encrypting the plaintext of ifTrue when the
	// condition holds, and of ifFalse otherwise.
	Select(cond, ifTrue, ifFalse Handle) (Handle, error)
}

// Decrypter reveals the plaintext behind a handle. It is exclusively used by
// the decryption oracle, after the access control checks passed. Ledger code
// must never hold a Decrypter.
type Decrypter interface {
	Decrypt(h Handle) (uint64, error)
}

// Package txn defines the abstraction of the ledger operations.
//
// A transaction is a smart contract input. It is uniquely identifiable via a
// digest and it can be ordered with the nonce that acts as a sequence number
// per identity.
package txn

import (
	"go.dedis.ch/arena/crypto"
)

// Transaction is what triggers a smart contract execution by passing it as
// part of the input.
type Transaction interface {
	// GetID returns the unique identifier for the transaction.
	GetID() []byte

	// GetNonce returns the nonce of the transaction which corresponds to
	// the sequence number of a unique identity.
	GetNonce() uint64

	// GetIdentity returns the identity that created the transaction.
	GetIdentity() crypto.PublicKey

	// GetArg is a getter for the arguments of the transaction.
	GetArg(key string) []byte
}

// Arg is a generic argument that can be stored in a transaction.
type Arg struct {
	Key   string
	Value []byte
}

// Manager is a manager to create transactions. It can help creating
// transactions when some information is required like the current nonce.
type Manager interface {
	Make(args ...Arg) (Transaction, error)
}

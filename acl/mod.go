// Package acl implements the access-control ledger of the ciphertext
// handles.
//
// An entry grants an identity the right to request the decryption of a
// handle. Entries live in the ledger state, under a dedicated prefix, so
// that a grant is committed atomically with the operation that created the
// ciphertext. Grants are permanent: there is no revocation.
package acl

import (
	"go.dedis.ch/arena/core/store"
	"go.dedis.ch/arena/crypto"
	"go.dedis.ch/arena/fhe"
	"golang.org/x/xerrors"
)

// Prefix is the key prefix of the access-control entries in the ledger
// state.
const Prefix = "acl:"

// Table gives access to the access-control entries of a ledger state. The
// ledger writes the entries while processing an operation and the
// decryption oracle reads them.
type Table struct{}

// NewTable creates a new access-control table.
func NewTable() Table {
	return Table{}
}

// Grant adds the identity to the list of identities allowed to request the
// decryption of the handle. The operation is idempotent.
func (t Table) Grant(snap store.Writable, h fhe.Handle, ident crypto.PublicKey) error {
	key, err := entryKey(h, ident)
	if err != nil {
		return xerrors.Errorf("couldn't make entry key: %v", err)
	}

	err = snap.Set(key, []byte{1})
	if err != nil {
		return xerrors.Errorf("couldn't store entry: %v", err)
	}

	return nil
}

// IsGranted returns true when the identity is allowed to request the
// decryption of the handle.
func (t Table) IsGranted(r store.Readable, h fhe.Handle, ident crypto.PublicKey) (bool, error) {
	key, err := entryKey(h, ident)
	if err != nil {
		return false, xerrors.Errorf("couldn't make entry key: %v", err)
	}

	value, err := r.Get(key)
	if err != nil {
		return false, xerrors.Errorf("couldn't read entry: %v", err)
	}

	return len(value) > 0, nil
}

func entryKey(h fhe.Handle, ident crypto.PublicKey) ([]byte, error) {
	identity, err := ident.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	key := make([]byte, 0, len(Prefix)+fhe.HandleLen+len(identity))
	key = append(key, []byte(Prefix)...)
	key = append(key, h.Bytes()...)
	key = append(key, identity...)

	return key, nil
}

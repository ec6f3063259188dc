// Package signed implements a transaction signed by the submitting account.
//
// The fingerprint of the transaction binds the nonce, the identity and the
// sorted argument set so that the Schnorr signature covers exactly what the
// ledger executes.
package signed

import (
	"encoding/binary"
	"io"
	"sort"

	"go.dedis.ch/arena/core/txn"
	"go.dedis.ch/arena/crypto"
	"golang.org/x/xerrors"
)

// Transaction is a signed transaction.
//
// - implements txn.Transaction
type Transaction struct {
	nonce     uint64
	args      map[string][]byte
	identity  crypto.PublicKey
	signature []byte
	hash      []byte
}

type template struct {
	Transaction

	hashFactory crypto.HashFactory
}

// TransactionOption is the type of options to create a transaction.
type TransactionOption func(*template)

// WithArg is an option to set an argument with the key and the value.
func WithArg(key string, value []byte) TransactionOption {
	return func(tmpl *template) {
		tmpl.args[key] = value
	}
}

// WithHashFactory is an option to set a different hash factory when creating
// a transaction.
func WithHashFactory(f crypto.HashFactory) TransactionOption {
	return func(tmpl *template) {
		tmpl.hashFactory = f
	}
}

// NewTransaction creates a new transaction with the provided nonce, signed
// by the signer.
func NewTransaction(nonce uint64, signer crypto.Signer, opts ...TransactionOption) (Transaction, error) {
	tmpl := template{
		Transaction: Transaction{
			nonce:    nonce,
			args:     make(map[string][]byte),
			identity: signer.GetPublicKey(),
		},
		hashFactory: crypto.NewSha256Factory(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	h := tmpl.hashFactory.New()

	err := tmpl.Fingerprint(h)
	if err != nil {
		return tmpl.Transaction, xerrors.Errorf("couldn't fingerprint tx: %v", err)
	}

	tmpl.hash = h.Sum(nil)

	tmpl.signature, err = signer.Sign(tmpl.hash)
	if err != nil {
		return tmpl.Transaction, xerrors.Errorf("couldn't sign tx: %v", err)
	}

	return tmpl.Transaction, nil
}

// GetID implements txn.Transaction. It returns the ID of the transaction.
func (t Transaction) GetID() []byte {
	return t.hash
}

// GetNonce implements txn.Transaction. It returns the nonce of the
// transaction.
func (t Transaction) GetNonce() uint64 {
	return t.nonce
}

// GetIdentity implements txn.Transaction. It returns the identity of the
// signer.
func (t Transaction) GetIdentity() crypto.PublicKey {
	return t.identity
}

// GetArg implements txn.Transaction. It returns the value of the argument if
// it is set, otherwise nil.
func (t Transaction) GetArg(key string) []byte {
	return t.args[key]
}

// GetSignature returns the signature of the transaction.
func (t Transaction) GetSignature() []byte {
	return t.signature
}

// Verify returns nil when the signature matches the fingerprint of the
// transaction for the identity that created it.
func (t Transaction) Verify() error {
	if t.identity == nil {
		return xerrors.New("missing identity")
	}

	err := t.identity.Verify(t.hash, t.signature)
	if err != nil {
		return xerrors.Errorf("invalid signature: %v", err)
	}

	return nil
}

// Fingerprint writes a deterministic binary representation of the
// transaction.
func (t Transaction) Fingerprint(w io.Writer) error {
	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, t.nonce)

	_, err := w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write nonce: %v", err)
	}

	identity, err := t.identity.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	_, err = w.Write(identity)
	if err != nil {
		return xerrors.Errorf("couldn't write identity: %v", err)
	}

	keys := make([]string, 0, len(t.args))
	for key := range t.args {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		_, err = w.Write([]byte(key))
		if err != nil {
			return xerrors.Errorf("couldn't write arg key: %v", err)
		}

		_, err = w.Write(t.args[key])
		if err != nil {
			return xerrors.Errorf("couldn't write arg value: %v", err)
		}
	}

	return nil
}

// Manager is a manager to create signed transactions. It manages the nonce
// by itself.
//
// - implements txn.Manager
type Manager struct {
	signer crypto.Signer
	nonce  uint64
}

// NewManager creates a new transaction manager for the signer.
func NewManager(signer crypto.Signer) *Manager {
	return &Manager{
		signer: signer,
	}
}

// Make implements txn.Manager. It creates a transaction populated with the
// arguments and the next nonce.
func (mgr *Manager) Make(args ...txn.Arg) (txn.Transaction, error) {
	opts := make([]TransactionOption, len(args))
	for i, arg := range args {
		opts[i] = WithArg(arg.Key, arg.Value)
	}

	tx, err := NewTransaction(mgr.nonce, mgr.signer, opts...)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create transaction: %v", err)
	}

	mgr.nonce++

	return tx, nil
}

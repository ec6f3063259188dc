// Package fake provides fake implementations for interfaces commonly used
// in the repository.
//
// The implementations offer configuration to return errors when it is
// needed by the unit test.
package fake

import (
	"errors"
	"time"

	"go.dedis.ch/arena/crypto"
	"go.dedis.ch/arena/fhe"
)

var fakeErr = errors.New("fake error")

// GetError returns the fake error.
func GetError() error {
	return fakeErr
}

// Err returns the expected format of a wrapped fake error.
func Err(msg string) string {
	return msg + ": fake error"
}

// Snapshot is a fake implementation of an in-memory snapshot.
//
// - implements store.Snapshot
type Snapshot struct {
	ErrRead  error
	ErrWrite error

	values map[string][]byte
}

// NewSnapshot returns a new empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		values: make(map[string][]byte),
	}
}

// NewBadSnapshot returns a snapshot that fails on every operation.
func NewBadSnapshot() *Snapshot {
	snap := NewSnapshot()
	snap.ErrRead = fakeErr
	snap.ErrWrite = fakeErr

	return snap
}

// Get implements store.Readable.
func (snap *Snapshot) Get(key []byte) ([]byte, error) {
	return snap.values[string(key)], snap.ErrRead
}

// Set implements store.Writable.
func (snap *Snapshot) Set(key, value []byte) error {
	if snap.ErrWrite != nil {
		return snap.ErrWrite
	}

	snap.values[string(key)] = value

	return nil
}

// Delete implements store.Writable.
func (snap *Snapshot) Delete(key []byte) error {
	if snap.ErrWrite != nil {
		return snap.ErrWrite
	}

	delete(snap.values, string(key))

	return nil
}

// Clock returns a clock frozen at the given time.
func Clock(at time.Time) func() time.Time {
	return func() time.Time {
		return at
	}
}

// Coprocessor is a fake implementation of the coprocessor that fails on
// every operation.
//
// - implements fhe.Coprocessor
// - implements fhe.Decrypter
type Coprocessor struct {
	Err error
}

// NewBadCoprocessor returns a coprocessor that fails on every operation.
func NewBadCoprocessor() Coprocessor {
	return Coprocessor{Err: fakeErr}
}

// GetInstance implements fhe.Coprocessor.
func (c Coprocessor) GetInstance() []byte {
	return []byte("fake-instance")
}

// EncryptUint32 implements fhe.Coprocessor.
func (c Coprocessor) EncryptUint32(value uint32) (fhe.Handle, error) {
	return fhe.Handle{}, c.Err
}

// VerifyInput implements fhe.Coprocessor.
func (c Coprocessor) VerifyInput(h fhe.Handle, proof []byte, ident crypto.PublicKey) error {
	return c.Err
}

// RandUint32 implements fhe.Coprocessor.
func (c Coprocessor) RandUint32(max uint32, salt []byte) (fhe.Handle, error) {
	return fhe.Handle{}, c.Err
}

// Add implements fhe.Coprocessor.
func (c Coprocessor) Add(a, b fhe.Handle) (fhe.Handle, error) {
	return fhe.Handle{}, c.Err
}

// Sub implements fhe.Coprocessor.
func (c Coprocessor) Sub(a, b fhe.Handle) (fhe.Handle, error) {
	return fhe.Handle{}, c.Err
}

// Eq implements fhe.Coprocessor.
func (c Coprocessor) Eq(a, b fhe.Handle) (fhe.Handle, error) {
	return fhe.Handle{}, c.Err
}

// Select implements fhe.Coprocessor.
func (c Coprocessor) Select(cond, ifTrue, ifFalse fhe.Handle) (fhe.Handle, error) {
	return fhe.Handle{}, c.Err
}

// Decrypt implements fhe.Decrypter.
func (c Coprocessor) Decrypt(h fhe.Handle) (uint64, error) {
	return 0, c.Err
}

// PublicKey is a fake implementation of a public key.
//
// - implements crypto.PublicKey
type PublicKey struct {
	ErrMarshal error
	ErrVerify  error
}

// NewBadPublicKey returns a public key that fails to marshal.
func NewBadPublicKey() PublicKey {
	return PublicKey{ErrMarshal: fakeErr}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return []byte("fake-public-key"), pk.ErrMarshal
}

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte("fake-public-key"), pk.ErrMarshal
}

// Verify implements crypto.PublicKey.
func (pk PublicKey) Verify(msg []byte, sig []byte) error {
	return pk.ErrVerify
}

// Equal implements crypto.PublicKey.
func (pk PublicKey) Equal(other interface{}) bool {
	_, ok := other.(PublicKey)
	return ok
}

// String implements fmt.Stringer.
func (pk PublicKey) String() string {
	return "fake.PublicKey"
}

// Signer is a fake implementation of a signer.
//
// - implements crypto.Signer
type Signer struct {
	Pubkey  PublicKey
	ErrSign error
}

// NewBadSigner returns a signer that fails to sign.
func NewBadSigner() Signer {
	return Signer{ErrSign: fakeErr}
}

// GetPublicKey implements crypto.Signer.
func (s Signer) GetPublicKey() crypto.PublicKey {
	return s.Pubkey
}

// Sign implements crypto.Signer.
func (s Signer) Sign(msg []byte) ([]byte, error) {
	return []byte("fake-signature"), s.ErrSign
}

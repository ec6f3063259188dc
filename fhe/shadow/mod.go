// Package shadow implements the coprocessor capability over plaintext
// shadow values.
//
// The shadow coprocessor stands in for the homomorphic encryption backend:
// it keeps the plaintexts in a private table keyed by handle, so that the
// ledger logic can be exercised end to end without a real encryption
// engine. The ledger side of the API is identical: handles in, handles out,
// and only the Decrypt primitive, reserved to the oracle, ever returns a
// plaintext.
package shadow

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"go.dedis.ch/arena/crypto"
	"go.dedis.ch/arena/fhe"
	"golang.org/x/xerrors"
)

// Shadow is a plaintext implementation of the coprocessor.
//
// - implements fhe.Coprocessor
// - implements fhe.Decrypter
type Shadow struct {
	sync.Mutex

	instance []byte
	inputMax uint32
	seed     []byte
	secret   []byte
	counter  uint64
	values   map[fhe.Handle]uint64
	types    map[fhe.Handle]fhe.Type
}

// NewShadow creates a coprocessor bound to the given ledger instance. Input
// proofs attest that the submitted value lies in [0, inputMax).
func NewShadow(instance []byte, inputMax uint32) *Shadow {
	return NewShadowWithRand(instance, inputMax, crypto.CryptographicRandomGenerator{})
}

// NewShadowWithRand creates a coprocessor with the given source of entropy
// for the encrypted seed and the proof secret.
func NewShadowWithRand(instance []byte, inputMax uint32, gen crypto.RandGenerator) *Shadow {
	seed := make([]byte, 32)
	secret := make([]byte, 32)

	// The generator is crypto/rand in production so a short read is not
	// expected. A deterministic generator in tests fills the buffers too.
	gen.Read(seed)
	gen.Read(secret)

	return &Shadow{
		instance: append([]byte{}, instance...),
		inputMax: inputMax,
		seed:     seed,
		secret:   secret,
		values:   make(map[fhe.Handle]uint64),
		types:    make(map[fhe.Handle]fhe.Type),
	}
}

// GetInstance implements fhe.Coprocessor. It returns the ledger instance the
// coprocessor is bound to.
func (s *Shadow) GetInstance() []byte {
	return append([]byte{}, s.instance...)
}

// EncryptUint32 implements fhe.Coprocessor. It mints a fresh handle for the
// public constant.
func (s *Shadow) EncryptUint32(value uint32) (fhe.Handle, error) {
	s.Lock()
	defer s.Unlock()

	return s.mint(uint64(value), fhe.Uint32, nil), nil
}

// Input encrypts a value on behalf of the identity and returns the handle
// with the proof of correct encryption. This is the client-side primitive:
// it refuses to prove a value outside [0, inputMax).
func (s *Shadow) Input(value uint32, ident crypto.PublicKey) (fhe.Handle, []byte, error) {
	if value >= s.inputMax {
		return fhe.Handle{}, nil, xerrors.Errorf(
			"value does not fit in [0, %d)", s.inputMax)
	}

	identity, err := ident.MarshalBinary()
	if err != nil {
		return fhe.Handle{}, nil, xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	s.Lock()
	defer s.Unlock()

	h := s.mint(uint64(value), fhe.Uint32, identity)

	return h, s.prove(h, identity), nil
}

// VerifyInput implements fhe.Coprocessor. It checks the proof binding the
// handle to the identity and this instance.
func (s *Shadow) VerifyInput(h fhe.Handle, proof []byte, ident crypto.PublicKey) error {
	identity, err := ident.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	s.Lock()
	defer s.Unlock()

	_, ok := s.values[h]
	if !ok {
		return xerrors.Errorf("unknown handle %v", h)
	}

	if !hmac.Equal(proof, s.prove(h, identity)) {
		return xerrors.New("proof does not match the input")
	}

	return nil
}

// RandUint32 implements fhe.Coprocessor. It derives a fresh draw in
// [0, max) from the encrypted seed and the salt, by rejection sampling so
// the reduction modulo max does not bias the low values.
func (s *Shadow) RandUint32(max uint32, salt []byte) (fhe.Handle, error) {
	if max == 0 {
		return fhe.Handle{}, xerrors.New("range must be positive")
	}

	// Samples above the largest multiple of max are discarded.
	limit := uint64(1<<32) - uint64(1<<32)%uint64(max)

	buffer := make([]byte, 4)
	value := uint64(0)

	for i := uint32(0); ; i++ {
		binary.BigEndian.PutUint32(buffer, i)

		mac := hmac.New(sha256.New, s.seed)
		mac.Write(salt)
		mac.Write(buffer)

		value = uint64(binary.BigEndian.Uint32(mac.Sum(nil)[:4]))
		if value < limit {
			break
		}
	}

	s.Lock()
	defer s.Unlock()

	return s.mint(value%uint64(max), fhe.Uint32, salt), nil
}

// Add implements fhe.Coprocessor. It returns a handle over the wrapping sum
// of the operands.
func (s *Shadow) Add(a, b fhe.Handle) (fhe.Handle, error) {
	s.Lock()
	defer s.Unlock()

	va, vb, err := s.pair(a, b)
	if err != nil {
		return fhe.Handle{}, err
	}

	return s.mint(uint64(uint32(va)+uint32(vb)), fhe.Uint32, nil), nil
}

// Sub implements fhe.Coprocessor. It returns a handle over the wrapping
// difference of the operands. There is no clamping at zero: the ciphertext
// domain wraps like the homomorphic scheme does.
func (s *Shadow) Sub(a, b fhe.Handle) (fhe.Handle, error) {
	s.Lock()
	defer s.Unlock()

	va, vb, err := s.pair(a, b)
	if err != nil {
		return fhe.Handle{}, err
	}

	return s.mint(uint64(uint32(va)-uint32(vb)), fhe.Uint32, nil), nil
}

// Eq implements fhe.Coprocessor. It returns a boolean handle over the
// equality of the operands.
func (s *Shadow) Eq(a, b fhe.Handle) (fhe.Handle, error) {
	s.Lock()
	defer s.Unlock()

	va, vb, err := s.pair(a, b)
	if err != nil {
		return fhe.Handle{}, err
	}

	value := uint64(0)
	if va == vb {
		value = 1
	}

	return s.mint(value, fhe.Bool, nil), nil
}

// Select implements fhe.Coprocessor. It returns a handle over the plaintext
// of ifTrue when the condition holds, of ifFalse otherwise.
func (s *Shadow) Select(cond, ifTrue, ifFalse fhe.Handle) (fhe.Handle, error) {
	s.Lock()
	defer s.Unlock()

	flag, ok := s.values[cond]
	if !ok {
		return fhe.Handle{}, xerrors.Errorf("unknown handle %v", cond)
	}

	if s.types[cond] != fhe.Bool {
		return fhe.Handle{}, xerrors.New("condition is not a boolean handle")
	}

	vt, vf, err := s.pair(ifTrue, ifFalse)
	if err != nil {
		return fhe.Handle{}, err
	}

	value := vf
	if flag == 1 {
		value = vt
	}

	return s.mint(value, fhe.Uint32, nil), nil
}

// Decrypt implements fhe.Decrypter. It returns the plaintext behind the
// handle. The access control checks belong to the oracle, not here.
func (s *Shadow) Decrypt(h fhe.Handle) (uint64, error) {
	if h.IsZero() {
		return 0, xerrors.New("cannot decrypt the placeholder handle")
	}

	s.Lock()
	defer s.Unlock()

	value, ok := s.values[h]
	if !ok {
		return 0, xerrors.Errorf("unknown handle %v", h)
	}

	return value, nil
}

// mint creates a fresh handle for the value. The handle is derived from the
// instance, a monotonic counter and the salt so that no two handles ever
// collide, even for equal plaintexts. The caller must hold the lock.
func (s *Shadow) mint(value uint64, typ fhe.Type, salt []byte) fhe.Handle {
	s.counter++

	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, s.counter)

	digest := sha256.New()
	digest.Write(s.instance)
	digest.Write(buffer)
	digest.Write(salt)

	var h fhe.Handle
	copy(h[:], digest.Sum(nil))

	s.values[h] = value
	s.types[h] = typ

	return h
}

// prove computes the MAC binding a handle to the identity, the instance and
// the attested range. The caller must hold the lock.
func (s *Shadow) prove(h fhe.Handle, identity []byte) []byte {
	buffer := make([]byte, 4)
	binary.BigEndian.PutUint32(buffer, s.inputMax)

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(h[:])
	mac.Write(identity)
	mac.Write(s.instance)
	mac.Write(buffer)

	return mac.Sum(nil)
}

// pair reads the two uint32 operands. The caller must hold the lock.
func (s *Shadow) pair(a, b fhe.Handle) (uint64, uint64, error) {
	va, ok := s.values[a]
	if !ok {
		return 0, 0, xerrors.Errorf("unknown handle %v", a)
	}

	if s.types[a] != fhe.Uint32 {
		return 0, 0, xerrors.Errorf("handle %v is not a uint32", a)
	}

	vb, ok := s.values[b]
	if !ok {
		return 0, 0, xerrors.Errorf("unknown handle %v", b)
	}

	if s.types[b] != fhe.Uint32 {
		return 0, 0, xerrors.Errorf("handle %v is not a uint32", b)
	}

	return va, vb, nil
}

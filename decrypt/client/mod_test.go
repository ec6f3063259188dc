package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/arena/crypto/ed25519"
	"go.dedis.ch/arena/decrypt"
	"go.dedis.ch/arena/fhe"
	"go.dedis.ch/arena/internal/testing/fake"
)

var instance = []byte("instance")

func TestNewSession(t *testing.T) {
	signer := ed25519.NewSigner()

	session, err := NewSession(signer, [][]byte{instance}, time.Now(), time.Minute)
	require.NoError(t, err)

	grant := session.GetGrant()
	require.True(t, grant.InScope(instance))
	require.True(t, grant.Signer.Equal(signer.GetPublicKey()))

	// The grant is immediately verifiable by the oracle.
	digest, err := grant.Digest()
	require.NoError(t, err)
	require.NoError(t, grant.Signer.Verify(digest, grant.Signature))

	_, err = NewSession(fake.Signer{Pubkey: fake.NewBadPublicKey()},
		nil, time.Now(), time.Minute)
	require.EqualError(t, err,
		fake.Err("couldn't make grant digest: couldn't marshal signer"))

	_, err = NewSession(fake.NewBadSigner(), nil, time.Now(), time.Minute)
	require.EqualError(t, err, fake.Err("couldn't sign grant"))
}

func TestSession_Decrypt(t *testing.T) {
	session, err := NewSession(ed25519.NewSigner(),
		[][]byte{instance}, time.Now(), time.Minute)
	require.NoError(t, err)

	var h fhe.Handle
	h[0] = 1

	orc := &fakeOracle{values: map[fhe.Handle]uint64{h: 42}}

	results, err := session.Decrypt(orc,
		decrypt.Pair{Handle: h, Instance: instance},
		decrypt.Pair{Handle: fhe.Handle{}, Instance: instance})
	require.NoError(t, err)
	require.Equal(t, uint64(42), results[h])

	// The placeholder handle reads as zero and never reaches the oracle.
	require.Equal(t, uint64(0), results[fhe.Handle{}])
	require.Equal(t, [][]decrypt.Pair{{{Handle: h, Instance: instance}}}, orc.calls)

	results, err = session.Decrypt(orc,
		decrypt.Pair{Handle: fhe.Handle{}, Instance: instance})
	require.NoError(t, err)
	require.Equal(t, uint64(0), results[fhe.Handle{}])
	require.Len(t, orc.calls, 1)
}

func TestSession_DecryptFailures(t *testing.T) {
	session, err := NewSession(ed25519.NewSigner(),
		[][]byte{instance}, time.Now(), time.Minute)
	require.NoError(t, err)

	var h fhe.Handle
	h[0] = 1

	pair := decrypt.Pair{Handle: h, Instance: instance}

	_, err = session.Decrypt(&fakeOracle{err: fake.GetError()}, pair)
	require.EqualError(t, err, fake.Err("oracle refused the request"))

	_, err = session.Decrypt(&fakeOracle{}, pair)
	require.EqualError(t, err, fmt.Sprintf("missing plaintext for %v", h))

	orc := &fakeOracle{empty: true, values: map[fhe.Handle]uint64{h: 42}}

	_, err = session.Decrypt(orc, pair)
	require.EqualError(t, err, "couldn't open plaintext: empty ciphertext")
}

func TestSession_DecryptOne(t *testing.T) {
	session, err := NewSession(ed25519.NewSigner(),
		[][]byte{instance}, time.Now(), time.Minute)
	require.NoError(t, err)

	var h fhe.Handle
	h[0] = 1

	orc := &fakeOracle{values: map[fhe.Handle]uint64{h: 42}}

	value, err := session.DecryptOne(orc, h, instance)
	require.NoError(t, err)
	require.Equal(t, uint64(42), value)

	value, err = session.DecryptOne(orc, fhe.Handle{}, instance)
	require.NoError(t, err)
	require.Equal(t, uint64(0), value)

	_, err = session.DecryptOne(&fakeOracle{err: fake.GetError()}, h, instance)
	require.EqualError(t, err, fake.Err("oracle refused the request"))
}

// -----------------------------------------------------------------------------
// Utility functions

// fakeOracle seals the configured values under the grant session key.
//
// - implements decrypt.Oracle
type fakeOracle struct {
	values map[fhe.Handle]uint64
	empty  bool
	err    error

	calls [][]decrypt.Pair
}

func (o *fakeOracle) HandleRequest(req decrypt.Request) (decrypt.Response, error) {
	o.calls = append(o.calls, req.Pairs)

	if o.err != nil {
		return decrypt.Response{}, o.err
	}

	resp := decrypt.Response{
		Plaintexts: make(map[fhe.Handle]decrypt.Ciphertext),
	}

	for _, pair := range req.Pairs {
		value, ok := o.values[pair.Handle]
		if !ok {
			continue
		}

		if o.empty {
			resp.Plaintexts[pair.Handle] = decrypt.Ciphertext{}
			continue
		}

		sealed, err := decrypt.Seal(req.Grant.Ephemeral, value)
		if err != nil {
			return decrypt.Response{}, err
		}

		resp.Plaintexts[pair.Handle] = sealed
	}

	return resp, nil
}

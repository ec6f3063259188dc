package signed

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/arena/core/txn"
	"go.dedis.ch/arena/crypto/ed25519"
	"go.dedis.ch/arena/internal/testing/fake"
)

func TestTransaction_New(t *testing.T) {
	signer := ed25519.NewSigner()

	tx, err := NewTransaction(5, signer, WithArg("key", []byte("value")))
	require.NoError(t, err)
	require.Equal(t, uint64(5), tx.GetNonce())
	require.Equal(t, []byte("value"), tx.GetArg("key"))
	require.Nil(t, tx.GetArg("unknown"))
	require.Len(t, tx.GetID(), 32)
	require.True(t, signer.GetPublicKey().Equal(tx.GetIdentity()))

	require.NoError(t, tx.Verify())

	_, err = NewTransaction(0, fake.NewBadSigner())
	require.EqualError(t, err, fake.Err("couldn't sign tx"))

	_, err = NewTransaction(0, fake.Signer{Pubkey: fake.NewBadPublicKey()})
	require.EqualError(t, err,
		fake.Err("couldn't fingerprint tx: couldn't marshal identity"))
}

func TestTransaction_Verify(t *testing.T) {
	signer := ed25519.NewSigner()

	tx, err := NewTransaction(0, signer, WithArg("key", []byte("value")))
	require.NoError(t, err)

	// A transaction signed by another identity does not verify.
	tx.identity = ed25519.NewSigner().GetPublicKey()
	err = tx.Verify()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid signature")

	tx.identity = nil
	require.EqualError(t, tx.Verify(), "missing identity")
}

func TestTransaction_Fingerprint(t *testing.T) {
	signer := ed25519.NewSigner()

	// The fingerprint covers the arguments: two transactions with the same
	// nonce but different arguments have different identifiers.
	txA, err := NewTransaction(1, signer, WithArg("key", []byte("a")))
	require.NoError(t, err)

	txB, err := NewTransaction(1, signer, WithArg("key", []byte("b")))
	require.NoError(t, err)

	require.NotEqual(t, txA.GetID(), txB.GetID())
}

func TestManager_Make(t *testing.T) {
	mgr := NewManager(ed25519.NewSigner())

	tx, err := mgr.Make(txn.Arg{Key: "key", Value: []byte("value")})
	require.NoError(t, err)
	require.Equal(t, uint64(0), tx.GetNonce())
	require.Equal(t, []byte("value"), tx.GetArg("key"))

	tx, err = mgr.Make()
	require.NoError(t, err)
	require.Equal(t, uint64(1), tx.GetNonce())

	mgr = NewManager(fake.NewBadSigner())
	_, err = mgr.Make()
	require.EqualError(t, err,
		fake.Err("couldn't create transaction: couldn't sign tx"))
}

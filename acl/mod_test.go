package acl

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/arena/crypto/ed25519"
	"go.dedis.ch/arena/fhe"
	"go.dedis.ch/arena/internal/testing/fake"
)

func TestTable_Grant(t *testing.T) {
	table := NewTable()
	snap := fake.NewSnapshot()

	ident := ed25519.NewSigner().GetPublicKey()

	var h fhe.Handle
	h[0] = 1

	granted, err := table.IsGranted(snap, h, ident)
	require.NoError(t, err)
	require.False(t, granted)

	require.NoError(t, table.Grant(snap, h, ident))

	granted, err = table.IsGranted(snap, h, ident)
	require.NoError(t, err)
	require.True(t, granted)

	// Granting again is a no-op.
	require.NoError(t, table.Grant(snap, h, ident))

	granted, err = table.IsGranted(snap, h, ident)
	require.NoError(t, err)
	require.True(t, granted)

	// The entry is per identity.
	other := ed25519.NewSigner().GetPublicKey()

	granted, err = table.IsGranted(snap, h, other)
	require.NoError(t, err)
	require.False(t, granted)
}

func TestTable_BadStore(t *testing.T) {
	table := NewTable()

	ident := ed25519.NewSigner().GetPublicKey()

	var h fhe.Handle

	err := table.Grant(fake.NewBadSnapshot(), h, ident)
	require.EqualError(t, err, fake.Err("couldn't store entry"))

	_, err = table.IsGranted(fake.NewBadSnapshot(), h, ident)
	require.EqualError(t, err, fake.Err("couldn't read entry"))

	err = table.Grant(fake.NewSnapshot(), h, fake.NewBadPublicKey())
	require.EqualError(t, err,
		fake.Err("couldn't make entry key: couldn't marshal identity"))
}

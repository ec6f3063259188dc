package ed25519

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSigner_SignAndVerify(t *testing.T) {
	signer := NewSigner()

	msg := []byte("deadbeef")

	sig, err := signer.Sign(msg)
	require.NoError(t, err)

	err = signer.GetPublicKey().Verify(msg, sig)
	require.NoError(t, err)

	err = signer.GetPublicKey().Verify([]byte("tampered"), sig)
	require.Error(t, err)
	require.Contains(t, err.Error(), "schnorr verify failed")

	other := NewSigner()
	err = other.GetPublicKey().Verify(msg, sig)
	require.Error(t, err)
}

func TestPublicKey_Marshal(t *testing.T) {
	signer := NewSigner()
	pk := signer.GetPublicKey()

	buffer, err := pk.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buffer, 32)

	same, err := NewPublicKey(buffer)
	require.NoError(t, err)
	require.True(t, pk.Equal(same))

	_, err = NewPublicKey([]byte{1, 2, 3})
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't unmarshal point")

	text, err := pk.MarshalText()
	require.NoError(t, err)
	require.Len(t, text, 64)
}

func TestPublicKey_Equal(t *testing.T) {
	signer := NewSigner()
	pk := signer.GetPublicKey()

	require.True(t, pk.Equal(pk))
	require.False(t, pk.Equal(NewSigner().GetPublicKey()))
	require.False(t, pk.Equal(struct{}{}))
}

func TestSigner_FromScalar(t *testing.T) {
	signer := NewSigner()

	same := NewSignerFromScalar(signer.GetPrivateKey())
	require.True(t, signer.GetPublicKey().Equal(same.GetPublicKey()))
}

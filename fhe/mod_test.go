package fhe

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandle_New(t *testing.T) {
	data := bytes.Repeat([]byte{0xaa}, HandleLen)

	h, err := NewHandle(data)
	require.NoError(t, err)
	require.Equal(t, data, h.Bytes())
	require.False(t, h.IsZero())

	_, err = NewHandle([]byte{1, 2, 3})
	require.EqualError(t, err, "invalid handle length 3")
}

func TestHandle_IsZero(t *testing.T) {
	require.True(t, Handle{}.IsZero())

	var h Handle
	h[0] = 1
	require.False(t, h.IsZero())
}

func TestHandle_String(t *testing.T) {
	var h Handle
	h[0] = 0xde
	h[1] = 0xad

	require.Equal(t, "dead000000000000", h.String())
}

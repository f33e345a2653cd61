package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneSlice(t *testing.T) {
	require := require.New(t)

	src := []byte{1, 2, 3}
	clone := CloneSlice(src, 0)
	require.Equal(src, clone)

	clone[0] = 9
	require.Equal(byte(1), src[0])

	padded := CloneSlice(src, 5)
	require.Equal([]byte{1, 2, 3, 0, 0}, padded)
}

func TestUintLE(t *testing.T) {
	require := require.New(t)

	require.Equal(uint64(0), UintLE(nil))
	require.Equal(uint64(7), UintLE([]byte{7}))
	require.Equal(uint64(0x0807), UintLE([]byte{0x07, 0x08}))
	require.Equal(uint64(0x04030201), UintLE([]byte{1, 2, 3, 4}))
	require.Equal(uint64(0x0807060504030201), UintLE([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}))
}

package fieldbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectory(t *testing.T) {
	require := require.New(t)

	dir, err := NewDirectory(
		DirectoryEntry{Position: 1, Kind: "io", Name: "EL1809"},
		DirectoryEntry{Position: 0, Kind: "coupler", Name: "EK1100"},
		DirectoryEntry{Position: 2, Kind: "wheel", Name: "WHEEL", MinRevision: 1015},
	)
	require.NoError(err)
	require.Equal(3, dir.Len())
	require.Equal(0, dir.Entries()[0].Position)

	entry, ok := dir.Lookup(2)
	require.True(ok)
	require.Equal("wheel", entry.Kind)

	_, ok = dir.Lookup(7)
	require.False(ok)

	t.Run("Check match", func(t *testing.T) {
		_, err := dir.Check(SlaveInfo{Position: 2, Name: "WHEEL", Revision: 1015})
		require.NoError(err)
	})

	t.Run("Check name mismatch", func(t *testing.T) {
		_, err := dir.Check(SlaveInfo{Position: 0, Name: "EK1110"})
		require.ErrorIs(err, ErrSlaveMismatch)
	})

	t.Run("Check old firmware", func(t *testing.T) {
		_, err := dir.Check(SlaveInfo{Position: 2, Name: "WHEEL", Revision: 1014})
		require.ErrorIs(err, ErrSlaveMismatch)
	})

	t.Run("Check unknown position", func(t *testing.T) {
		_, err := dir.Check(SlaveInfo{Position: 9, Name: "X"})
		require.ErrorIs(err, ErrSlaveMismatch)
	})
}

func TestNewDirectoryInvalid(t *testing.T) {
	require := require.New(t)

	_, err := NewDirectory(DirectoryEntry{Position: 0}, DirectoryEntry{Position: 0})
	require.Error(err)

	_, err = NewDirectory(DirectoryEntry{Position: -1})
	require.Error(err)
}

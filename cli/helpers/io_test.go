package helpers

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	t.Run("Should create parent directories and apply permissions", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, WriteFile(fs, "/keys/alice/private.key", []byte("seed\n"), 0o600, false))
		info, err := fs.Stat("/keys/alice/private.key")
		require.NoError(t, err)
		assert.Equal(t, "-rw-------", info.Mode().Perm().String())
	})

	t.Run("Should refuse to overwrite unless asked", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, WriteFile(fs, "/k", []byte("one"), 0o600, false))
		err := WriteFile(fs, "/k", []byte("two"), 0o600, false)
		assert.ErrorIs(t, err, ErrFileExists)
		require.NoError(t, WriteFile(fs, "/k", []byte("two"), 0o600, true))
		got, err := ReadTrimmed(fs, "/k")
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("Should reject empty paths", func(t *testing.T) {
		assert.Error(t, WriteFile(afero.NewMemMapFs(), "", nil, 0o600, false))
		_, err := ReadTrimmed(afero.NewMemMapFs(), "")
		assert.Error(t, err)
	})
}

func TestReadTrimmed(t *testing.T) {
	t.Run("Should strip trailing newlines", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/pub", []byte("  AAAA\n\n"), 0o644))
		got, err := ReadTrimmed(fs, "/pub")
		require.NoError(t, err)
		assert.Equal(t, "AAAA", got)
	})

	t.Run("Should fail on missing files", func(t *testing.T) {
		_, err := ReadTrimmed(afero.NewMemMapFs(), "/missing")
		assert.Error(t, err)
	})
}

package native

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.so"))
	assert.ErrorIs(t, err, ErrLibrary)
}

func TestCompare(t *testing.T) {
	path := os.Getenv(EnvLibraryPath)
	if path == "" {
		t.Skipf("%s not set", EnvLibraryPath)
	}
	lib, err := Open(path)
	require.NoError(t, err)
	defer lib.Close() //nolint:errcheck

	for _, height := range []uint64{0, 1, 1806260, 1806261, ^uint64(0)} {
		assert.NoError(t, Compare(lib, height), "height %d", height)
	}
}

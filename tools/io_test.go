package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFilenameWithoutExtension(t *testing.T) {
	assert.Equal(t, "tile_01", GetFilenameWithoutExtension(filepath.Join("data", "tile_01.las")))
	assert.Equal(t, "tile", GetFilenameWithoutExtension("tile"))
	assert.Equal(t, "tile.v2", GetFilenameWithoutExtension("tile.v2.las"))
}

func TestCreateDirectoryIfDoesNotExist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateDirectoryIfDoesNotExist(dir))
	require.NoError(t, CreateDirectoryIfDoesNotExist(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGetOutputStem(t *testing.T) {
	root := filepath.Join("data", "tiles")
	assert.Equal(t, "tile", GetOutputStem(root, filepath.Join(root, "a", "tile.las"), false))
	assert.Equal(t, "tile", GetOutputStem(root, filepath.Join(root, "tile.las"), true))
	assert.Equal(t, "a_tile", GetOutputStem(root, filepath.Join(root, "a", "tile.las"), true))
	assert.Equal(t, "a_b_tile", GetOutputStem(root, filepath.Join(root, "a", "b", "tile.LAS"), true))
	assert.Equal(t, "tile", GetOutputStem(root, filepath.Join("elsewhere", "tile.las"), true))
}

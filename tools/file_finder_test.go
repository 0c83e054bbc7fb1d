package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/als_raster/internal/pipeline"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, nil, 0644))
}

func TestGetLasFilesToProcess(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.las"))
	touch(t, filepath.Join(root, "a.LAS"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "sub", "c.las"))

	finder := NewStandardFileFinder()
	opts := pipeline.DefaultOptions()
	opts.Input = root
	opts.FolderProcessing = true

	files, err := finder.GetLasFilesToProcess(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.LAS"), filepath.Join(root, "b.las")}, files)

	opts.Recursive = true
	files, err = finder.GetLasFilesToProcess(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.LAS"),
		filepath.Join(root, "b.las"),
		filepath.Join(root, "sub", "c.las"),
	}, files)
}

func TestGetLasFilesToProcess_SingleFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "tile.las")
	touch(t, path)

	opts := pipeline.DefaultOptions()
	opts.Input = path
	files, err := NewStandardFileFinder().GetLasFilesToProcess(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)

	opts.Input = filepath.Join(root, "missing.las")
	_, err = NewStandardFileFinder().GetLasFilesToProcess(opts)
	assert.Error(t, err)

	opts.Input = path
	opts.FolderProcessing = true
	_, err = NewStandardFileFinder().GetLasFilesToProcess(opts)
	assert.Error(t, err)
}

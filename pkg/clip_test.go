package pkg

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/las"
	"github.com/ecopia-map/als_raster/internal/pipeline"
)

func TestClipFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tile.las")
	writeTile(t, input)

	opts := pipeline.DefaultOptions()
	opts.Input = input
	opts.ClipOptions = &pipeline.ClipOptions{
		Bounds:      data.Bounds{XMin: 0, YMin: 0, XMax: 1, YMax: 3},
		Output:      filepath.Join(dir, "clip.las"),
		PointFormat: 6,
	}

	result, err := ClipFile(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, &ClipResult{Total: 18, Written: 6}, result)

	clipped, err := las.ReadFile(context.Background(), opts.ClipOptions.Output)
	require.NoError(t, err)
	assert.Equal(t, 2056, clipped.EPSG)
	assert.Equal(t, uint8(6), clipped.Header.PointFormat)
	require.Len(t, clipped.Points, 6)
	for _, p := range clipped.Points {
		assert.Equal(t, 0.5, p.X)
	}
}

func TestClipFile_InvalidOptions(t *testing.T) {
	opts := pipeline.DefaultOptions()
	_, err := ClipFile(context.Background(), opts)
	assert.Error(t, err)

	opts.ClipOptions = &pipeline.ClipOptions{Bounds: data.EmptyBounds()}
	_, err = ClipFile(context.Background(), opts)
	assert.Error(t, err)
}

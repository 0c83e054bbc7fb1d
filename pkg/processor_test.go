package pkg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/las"
	"github.com/ecopia-map/als_raster/internal/pipeline"
	"github.com/ecopia-map/als_raster/internal/pointstore"
	"github.com/ecopia-map/als_raster/internal/rasterio"
	"github.com/ecopia-map/als_raster/internal/runstore"
	"github.com/ecopia-map/als_raster/pkg/algorithm_manager/std_algorithm_manager"
	"github.com/ecopia-map/als_raster/tools"
)

func writeTile(t *testing.T, path string) {
	t.Helper()
	points := append(cellCenters(100, groundClass), cellCenters(112, vegetationClass)...)
	require.NoError(t, las.WriteFile(path, points, las.WriterOptions{EPSG: 2056}))
}

func newTestProcessor(t *testing.T, opts *pipeline.Options, catalog *runstore.Store) IProcessor {
	t.Helper()
	am, err := std_algorithm_manager.NewAlgorithmManager(opts)
	require.NoError(t, err)
	return NewProcessor(tools.NewStandardFileFinder(), am, catalog)
}

func TestProcessor_SingleFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tile.las")
	writeTile(t, input)

	opts := pipeline.DefaultOptions()
	opts.Input = input
	opts.Output = filepath.Join(dir, "out")
	opts.Products.Density = true

	results, err := newTestProcessor(t, opts, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.NoError(t, result.Err)
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, result.Paths, 4)

	chmPath, sidecarPath := rasterio.ProductPaths(opts.Output, "tile", grid.ProductCHM)
	assert.Equal(t, chmPath, result.Paths[grid.ProductCHM])
	chm, err := rasterio.ReadASCII(chmPath, data.EPSGCode(2056))
	require.NoError(t, err)
	assertAll(t, chm, 12)

	md, err := rasterio.ReadMetadata(sidecarPath)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, md.RunID)
	assert.Equal(t, grid.ProductCHM, md.Provenance.Product)
}

func TestProcessor_FolderWithCatalog(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tiles")
	require.NoError(t, os.MkdirAll(input, 0755))
	writeTile(t, filepath.Join(input, "a.las"))
	require.NoError(t, os.WriteFile(filepath.Join(input, "b.las"), []byte("not a las file"), 0644))

	catalog, err := runstore.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer catalog.Close()

	opts := pipeline.DefaultOptions()
	opts.Input = input
	opts.FolderProcessing = true
	opts.Output = filepath.Join(dir, "out")

	results, err := newTestProcessor(t, opts, catalog).Run(context.Background(), opts)
	require.Error(t, err)
	var formatErr *pointstore.FormatError
	assert.ErrorAs(t, err, &formatErr)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)

	ctx := context.Background()
	runs, err := catalog.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	statuses := map[string]runstore.Status{}
	for _, run := range runs {
		statuses[filepath.Base(run.Source)] = run.Status
	}
	assert.Equal(t, map[string]runstore.Status{
		"a.las": runstore.StatusSucceeded,
		"b.las": runstore.StatusFailed,
	}, statuses)

	products, err := catalog.Products(ctx, results[0].RunID)
	require.NoError(t, err)
	require.Len(t, products, 3)
	for _, p := range products {
		assert.Equal(t, 9, p.ValidCells)
		assert.Equal(t, 0, p.UnresolvedGaps)
		assert.Equal(t, results[0].Paths[p.Product], p.Path)
	}
}

func TestProcessor_RecursiveFolderKeepsSubfolderNames(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tiles")
	for _, sub := range []string{"a", "b"} {
		require.NoError(t, os.MkdirAll(filepath.Join(input, sub), 0755))
		writeTile(t, filepath.Join(input, sub, "tile.las"))
	}

	opts := pipeline.DefaultOptions()
	opts.Input = input
	opts.FolderProcessing = true
	opts.Recursive = true
	opts.Output = filepath.Join(dir, "out")

	results, err := newTestProcessor(t, opts, nil).Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, stem := range []string{"a_tile", "b_tile"} {
		dtmPath, _ := rasterio.ProductPaths(opts.Output, stem, grid.ProductDTM)
		assert.Equal(t, dtmPath, results[i].Paths[grid.ProductDTM])
		assert.FileExists(t, dtmPath)
	}
}

func TestProcessor_NoInput(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.Input = t.TempDir()
	opts.FolderProcessing = true
	opts.Output = t.TempDir()

	_, err := newTestProcessor(t, opts, nil).Run(context.Background(), opts)
	assert.Error(t, err)
}

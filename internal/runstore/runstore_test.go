package runstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/als_raster/internal/grid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := time.Unix(1700000000, 0)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	run, err := store.BeginRun(ctx, "tile.las", "EPSG:2056", 0.5, map[string]string{"dtm": "IDW"})
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, StatusRunning, run.Status)

	require.NoError(t, store.RecordProduct(ctx, Product{
		RunID:          run.ID,
		Product:        grid.ProductDTM,
		Path:           "/out/tile_dtm.asc",
		Cols:           20,
		Rows:           10,
		ValidCells:     190,
		UnresolvedGaps: 10,
		Provenance:     grid.Provenance{Product: grid.ProductDTM, Source: "tile.las", Algorithm: "IDW"},
	}))
	require.NoError(t, store.FinishRun(ctx, run.ID, nil))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusSucceeded, runs[0].Status)
	assert.Equal(t, map[string]string{"dtm": "IDW"}, runs[0].Parameters)
	assert.True(t, runs[0].FinishedAt.After(runs[0].StartedAt))

	products, err := store.Products(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 10, products[0].UnresolvedGaps)
	assert.Equal(t, "IDW", products[0].Provenance.Algorithm)
}

func TestFailedRunAndOrdering(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	first, err := store.BeginRun(ctx, "a.las", "EPSG:2056", 1, nil)
	require.NoError(t, err)
	second, err := store.BeginRun(ctx, "b.las", "EPSG:2056", 1, nil)
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, first.ID, errors.New("dtm: boom")))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID, "most recent first")
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.True(t, runs[0].FinishedAt.IsZero())
	assert.Equal(t, StatusFailed, runs[1].Status)
	assert.Equal(t, "dtm: boom", runs[1].Error)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.Error(t, store.FinishRun(ctx, "missing", nil))
}

func TestReopenKeepsCatalog(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.BeginRun(ctx, "a.las", "EPSG:2056", 1, map[string]string{})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	runs, err := reopened.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

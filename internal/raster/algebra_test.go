package raster

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/parallel"
)

const nd = grid.DefaultNoData

var (
	testEngine = parallel.Engine{Workers: 2}
	testExtent = grid.Extent{XMin: 100, YMin: 200, Resolution: 1, Cols: 3, Rows: 2}
	testCRS    = data.EPSGCode(2056)
)

func mustGrid(t *testing.T, values ...float64) *grid.Grid {
	t.Helper()
	g, err := grid.FromValues(testExtent, testCRS, nd, values)
	require.NoError(t, err)
	return g
}

func randomGrid(t *testing.T, rng *rand.Rand) *grid.Grid {
	values := make([]float64, testExtent.Len())
	for i := range values {
		if rng.Intn(4) == 0 {
			values[i] = nd
		} else {
			values[i] = rng.NormFloat64() * 100
		}
	}
	return mustGrid(t, values...)
}

func TestApply_CanopyHeight(t *testing.T) {
	dtm := mustGrid(t, 0, 0, 0, 0, 0, 0)
	dsm := mustGrid(t, 10, 10, nd, 10, 10, 10)

	chm, err := Apply(context.Background(), dsm, dtm, Subtract, testEngine)
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 10, nd, 10, 10, 10}, chm.Values())
	assert.Equal(t, testCRS, chm.CRS())
	assert.Equal(t, testExtent, chm.Extent())
}

func TestApply_KeepsNegativeDifferences(t *testing.T) {
	dtm := mustGrid(t, 5, 5, 5, 5, 5, 5)
	dsm := mustGrid(t, 4.5, 6, 5, 5, 5, 5)

	chm, err := Apply(context.Background(), dsm, dtm, Subtract, testEngine)
	require.NoError(t, err)
	assert.Equal(t, -0.5, chm.At(0, 0))
	assert.Equal(t, 0.0, ClampBelow(chm, 0).At(0, 0))
	assert.Equal(t, 1.0, ClampBelow(chm, 0).At(1, 0))
}

func TestApply_AddIsCommutative(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		a, b := randomGrid(t, rng), randomGrid(t, rng)

		ab, err := Apply(context.Background(), a, b, Add, testEngine)
		require.NoError(t, err)
		ba, err := Apply(context.Background(), b, a, Add, testEngine)
		require.NoError(t, err)
		assert.Equal(t, ab.Values(), ba.Values())
	}
}

func TestApply_SubtractIsAntiSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		a, b := randomGrid(t, rng), randomGrid(t, rng)

		ab, err := Apply(context.Background(), a, b, Subtract, testEngine)
		require.NoError(t, err)
		ba, err := Apply(context.Background(), b, a, Subtract, testEngine)
		require.NoError(t, err)

		for offset := 0; offset < testExtent.Len(); offset++ {
			cell := testExtent.Cell(offset)
			x, okX := ab.Value(cell.Col, cell.Row)
			y, okY := ba.Value(cell.Col, cell.Row)
			require.Equal(t, okX, okY)
			if okX {
				assert.Equal(t, x, -y)
			}
		}
	}
}

func TestApply_DivideByZeroIsNoData(t *testing.T) {
	a := mustGrid(t, 1, 2, 3, 4, 5, 6)
	b := mustGrid(t, 2, 0, 3, nd, 5, 0.5)

	q, err := Apply(context.Background(), a, b, Divide, testEngine)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, nd, 1, nd, 1, 12}, q.Values())

	p, err := Apply(context.Background(), a, b, Multiply, testEngine)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0, 9, nd, 25, 3}, p.Values())
}

func TestApply_Mismatch(t *testing.T) {
	a := mustGrid(t, 1, 2, 3, 4, 5, 6)

	shifted := testExtent
	shifted.XMin += 0.5
	b, err := grid.FromValues(shifted, testCRS, nd, a.Values())
	require.NoError(t, err)
	_, err = Apply(context.Background(), a, b, Add, testEngine)
	var mismatch *GridMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "extents differ", mismatch.Reason)

	other, err := grid.FromValues(testExtent, data.EPSGCode(2154), nd, a.Values())
	require.NoError(t, err)
	_, err = Apply(context.Background(), a, other, Add, testEngine)
	require.ErrorAs(t, err, &mismatch)

	coarse := testExtent
	coarse.Resolution = 2
	c, err := grid.FromValues(coarse, testCRS, nd, a.Values())
	require.NoError(t, err)
	_, err = Apply(context.Background(), a, c, Add, testEngine)
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, mismatch.Reason, "resolution")

	_, err = Apply(context.Background(), a, a, Op(42), testEngine)
	assert.Error(t, err)
}

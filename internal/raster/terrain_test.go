package raster

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/als_raster/internal/grid"
)

func planeGrid(t *testing.T, size int, fn func(x, y float64) float64) *grid.Grid {
	t.Helper()
	extent := grid.Extent{XMin: 0, YMin: 0, Resolution: 2, Cols: size, Rows: size}
	values := make([]float64, extent.Len())
	for offset := range values {
		x, y := extent.CellCenter(extent.Cell(offset))
		values[offset] = fn(x, y)
	}
	g, err := grid.FromValues(extent, testCRS, nd, values)
	require.NoError(t, err)
	return g
}

func TestSlope_Plane(t *testing.T) {
	g := planeGrid(t, 5, func(x, y float64) float64 { return x })

	slope, err := Slope(context.Background(), g, Degrees, testEngine)
	require.NoError(t, err)

	assert.InDelta(t, 45.0, slope.At(2, 2), 1e-9)
	assert.Equal(t, nd, slope.At(0, 2), "border cells have no full neighbourhood")
	assert.Equal(t, nd, slope.At(2, 4))

	radians, err := Slope(context.Background(), g, Radians, testEngine)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/4, radians.At(1, 1), 1e-9)
}

func TestAspect_Directions(t *testing.T) {
	cases := []struct {
		name  string
		plane func(x, y float64) float64
		want  float64
	}{
		{"rising east faces west", func(x, y float64) float64 { return x }, 270},
		{"rising west faces east", func(x, y float64) float64 { return -x }, 90},
		{"rising north faces south", func(x, y float64) float64 { return y }, 180},
		{"rising south faces north", func(x, y float64) float64 { return -y }, 0},
		{"rising north east faces south west", func(x, y float64) float64 { return x + y }, 225},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			aspect, err := Aspect(context.Background(), planeGrid(t, 4, tc.plane), Degrees, testEngine)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, aspect.At(1, 2), 1e-9)
		})
	}
}

func TestAspect_FlatIsNoData(t *testing.T) {
	g := planeGrid(t, 3, func(x, y float64) float64 { return 12 })

	aspect, err := Aspect(context.Background(), g, Degrees, testEngine)
	require.NoError(t, err)
	assert.Equal(t, nd, aspect.At(1, 1))

	slope, err := Slope(context.Background(), g, Degrees, testEngine)
	require.NoError(t, err)
	assert.Equal(t, 0.0, slope.At(1, 1))
}

func TestSlope_NoDataNeighbour(t *testing.T) {
	extent := grid.Extent{XMin: 0, YMin: 0, Resolution: 1, Cols: 3, Rows: 3}
	g, err := grid.FromValues(extent, testCRS, nd, []float64{1, 1, 1, 1, 1, 1, 1, 1, nd})
	require.NoError(t, err)

	slope, err := Slope(context.Background(), g, Degrees, testEngine)
	require.NoError(t, err)
	assert.Equal(t, 9, slope.CountNoData())
}

func TestParseAngleUnit(t *testing.T) {
	u, err := ParseAngleUnit("radians")
	require.NoError(t, err)
	assert.Equal(t, Radians, u)
	u, err = ParseAngleUnit("")
	require.NoError(t, err)
	assert.Equal(t, Degrees, u)
	_, err = ParseAngleUnit("gradians")
	assert.Error(t, err)
}

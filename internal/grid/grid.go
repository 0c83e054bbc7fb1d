// Package grid holds rasters derived from point clouds and the rasterizer producing them.
package grid

import (
	"fmt"
	"math"

	"github.com/ecopia-map/als_raster/internal/data"
)

// DefaultNoData marks cells without a value
const DefaultNoData = -9999.0

// Grid is a 2D raster of float64 cells stored row-major from the southern-most row.
// A grid is immutable once built: stages write cells through a Builder.
type Grid struct {
	extent Extent
	crs    data.CRS
	noData float64
	values []float64
}

// FromValues builds a grid from row-major values. The slice is retained.
func FromValues(extent Extent, crs data.CRS, noData float64, values []float64) (*Grid, error) {
	if len(values) != extent.Len() {
		return nil, fmt.Errorf("expected %d values for %s, got %d", extent.Len(), extent, len(values))
	}
	return &Grid{extent: extent, crs: crs, noData: noData, values: values}, nil
}

func (g *Grid) Extent() Extent {
	return g.extent
}

func (g *Grid) CRS() data.CRS {
	return g.crs
}

func (g *Grid) NoData() float64 {
	return g.noData
}

func (g *Grid) Cols() int {
	return g.extent.Cols
}

func (g *Grid) Rows() int {
	return g.extent.Rows
}

// At returns the raw value of a cell, possibly the no-data sentinel
func (g *Grid) At(col, row int) float64 {
	return g.values[row*g.extent.Cols+col]
}

// Value returns the value of a cell and whether it holds data
func (g *Grid) Value(col, row int) (float64, bool) {
	v := g.At(col, row)
	return v, !g.IsNoData(v)
}

// IsNoData reports whether v is the no-data sentinel of the grid. A NaN sentinel matches any NaN.
func (g *Grid) IsNoData(v float64) bool {
	return isNoData(v, g.noData)
}

func isNoData(v, noData float64) bool {
	if math.IsNaN(noData) {
		return math.IsNaN(v)
	}
	return v == noData || math.IsNaN(v)
}

// Values returns a copy of the row-major cell values
func (g *Grid) Values() []float64 {
	return append([]float64(nil), g.values...)
}

// NoDataCells lists the cells without a value in row-major order
func (g *Grid) NoDataCells() []CellIndex {
	var cells []CellIndex
	for offset, v := range g.values {
		if g.IsNoData(v) {
			cells = append(cells, g.extent.Cell(offset))
		}
	}
	return cells
}

// CountNoData returns the number of cells without a value
func (g *Grid) CountNoData() int {
	count := 0
	for _, v := range g.values {
		if g.IsNoData(v) {
			count++
		}
	}
	return count
}

// Builder is the write phase of a grid. Distinct cells may be set concurrently.
type Builder struct {
	grid *Grid
}

// NewBuilder starts a grid with every cell set to no-data
func NewBuilder(extent Extent, crs data.CRS, noData float64) *Builder {
	values := make([]float64, extent.Len())
	for i := range values {
		values[i] = noData
	}
	return &Builder{grid: &Grid{extent: extent, crs: crs, noData: noData, values: values}}
}

// NewBuilderFrom starts a grid initialized with a copy of the source cells
func NewBuilderFrom(source *Grid) *Builder {
	return &Builder{grid: &Grid{
		extent: source.extent,
		crs:    source.crs,
		noData: source.noData,
		values: source.Values(),
	}}
}

func (b *Builder) Extent() Extent {
	return b.grid.extent
}

func (b *Builder) NoData() float64 {
	return b.grid.noData
}

func (b *Builder) Set(col, row int, v float64) {
	b.grid.values[row*b.grid.extent.Cols+col] = v
}

func (b *Builder) SetOffset(offset int, v float64) {
	b.grid.values[offset] = v
}

// Build seals the grid. The builder must not be used afterwards.
func (b *Builder) Build() *Grid {
	g := b.grid
	b.grid = nil
	return g
}

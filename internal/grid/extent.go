package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/ecopia-map/als_raster/internal/data"
)

// CellIndex addresses a grid cell, row 0 being the southern-most row
type CellIndex struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Extent is the georeferencing of a grid: lower left corner, square cell size and dimensions
type Extent struct {
	XMin       float64
	YMin       float64
	Resolution float64
	Cols       int
	Rows       int
}

// NewExtent snaps the bounds to the resolution: the origin is floored to a multiple of the
// resolution and the dimensions cover the bounds inclusive of their upper edges.
// Decimal arithmetic keeps resolutions such as 0.1 from drifting.
func NewExtent(bounds data.Bounds, resolution float64) (Extent, error) {
	if !(resolution > 0) || math.IsInf(resolution, 1) {
		return Extent{}, fmt.Errorf("resolution must be positive and finite, got %g", resolution)
	}
	if bounds.IsEmpty() {
		return Extent{}, errors.New("cannot derive a grid extent from empty bounds")
	}
	for _, v := range []float64{bounds.XMin, bounds.YMin, bounds.XMax, bounds.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Extent{}, fmt.Errorf("cannot derive a grid extent from non-finite bounds %+v", bounds)
		}
	}

	res := decimal.NewFromFloat(resolution)
	xmin, cols := snap(bounds.XMin, bounds.XMax, res)
	ymin, rows := snap(bounds.YMin, bounds.YMax, res)
	if cols < 1 || rows < 1 || cols > math.MaxInt32 || rows > math.MaxInt32 || cols*rows > math.MaxInt32 {
		return Extent{}, fmt.Errorf("grid of %d x %d cells at resolution %g is too large", cols, rows, resolution)
	}

	return Extent{
		XMin:       xmin.InexactFloat64(),
		YMin:       ymin.InexactFloat64(),
		Resolution: resolution,
		Cols:       int(cols),
		Rows:       int(rows),
	}, nil
}

func snap(low, high float64, res decimal.Decimal) (decimal.Decimal, int64) {
	origin := decimal.NewFromFloat(low).Div(res).Floor().Mul(res)
	count := decimal.NewFromFloat(high).Sub(origin).Div(res).Floor().IntPart() + 1
	return origin, count
}

// Len is the number of cells
func (e Extent) Len() int {
	return e.Cols * e.Rows
}

func (e Extent) XMax() float64 {
	return e.XMin + float64(e.Cols)*e.Resolution
}

func (e Extent) YMax() float64 {
	return e.YMin + float64(e.Rows)*e.Resolution
}

// Bounds returns the area covered by the cells: origin + resolution × cell count
func (e Extent) Bounds() data.Bounds {
	return data.Bounds{XMin: e.XMin, YMin: e.YMin, XMax: e.XMax(), YMax: e.YMax()}
}

// CellOf returns the cell containing (x, y). Points on the upper edge of the extent
// belong to the last column or row.
func (e Extent) CellOf(x, y float64) (CellIndex, bool) {
	col, okCol := axisCell(x, e.XMin, e.Resolution, e.Cols)
	row, okRow := axisCell(y, e.YMin, e.Resolution, e.Rows)
	return CellIndex{Col: col, Row: row}, okCol && okRow
}

func axisCell(v, origin, resolution float64, count int) (int, bool) {
	f := math.Floor((v - origin) / resolution)
	if math.IsNaN(f) || f < 0 {
		return 0, false
	}
	i := int(f)
	if i >= count {
		// floating point rounding of values sitting on the last edge
		if v <= origin+float64(count)*resolution {
			return count - 1, true
		}
		return 0, false
	}
	return i, true
}

// CellCenter returns the coordinates of the center of a cell
func (e Extent) CellCenter(cell CellIndex) (x, y float64) {
	return e.XMin + (float64(cell.Col)+0.5)*e.Resolution,
		e.YMin + (float64(cell.Row)+0.5)*e.Resolution
}

// Offset returns the position of the cell in row-major storage
func (e Extent) Offset(cell CellIndex) int {
	return cell.Row*e.Cols + cell.Col
}

// Cell is the inverse of Offset
func (e Extent) Cell(offset int) CellIndex {
	return CellIndex{Col: offset % e.Cols, Row: offset / e.Cols}
}

// Matches reports whether both extents describe the same cells. Origins may differ by a
// negligible fraction of the resolution.
func (e Extent) Matches(other Extent) bool {
	if e.Cols != other.Cols || e.Rows != other.Rows || e.Resolution != other.Resolution {
		return false
	}
	tolerance := e.Resolution * 1e-9
	return math.Abs(e.XMin-other.XMin) <= tolerance && math.Abs(e.YMin-other.YMin) <= tolerance
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d cells of %g at (%g, %g)", e.Cols, e.Rows, e.Resolution, e.XMin, e.YMin)
}

// Package raster combines co-registered grids cell by cell and derives terrain attributes.
package raster

import (
	"context"
	"fmt"
	"math"

	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/parallel"
)

// Op is an elementwise binary operation
type Op int

const (
	Add Op = iota
	Subtract
	Multiply
	Divide
)

func (op Op) String() string {
	switch op {
	case Add:
		return "ADD"
	case Subtract:
		return "SUBTRACT"
	case Multiply:
		return "MULTIPLY"
	case Divide:
		return "DIVIDE"
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// apply returns the result of the operation and false when the result is undefined
func (op Op) apply(a, b float64) (float64, bool) {
	switch op {
	case Add:
		return a + b, true
	case Subtract:
		return a - b, true
	case Multiply:
		return a * b, true
	case Divide:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	}
	return 0, false
}

// checkAligned verifies that two grids share extent, resolution and CRS
func checkAligned(a, b *grid.Grid) error {
	ea, eb := a.Extent(), b.Extent()
	switch {
	case ea.Resolution != eb.Resolution:
		return &GridMismatchError{Reason: fmt.Sprintf("resolution %g != %g", ea.Resolution, eb.Resolution), Left: ea, Right: eb}
	case !ea.Matches(eb):
		return &GridMismatchError{Reason: "extents differ", Left: ea, Right: eb}
	case !a.CRS().Equal(b.CRS()):
		return &GridMismatchError{Reason: fmt.Sprintf("crs %s != %s", a.CRS(), b.CRS()), Left: ea, Right: eb}
	}
	return nil
}

// Apply computes a op b cell by cell. A no-data cell in either input, or a division by
// zero, yields no-data. The result carries the extent, CRS and no-data value of a.
func Apply(ctx context.Context, a, b *grid.Grid, op Op, engine parallel.Engine) (*grid.Grid, error) {
	if op < Add || op > Divide {
		return nil, fmt.Errorf("unsupported raster operation %s", op)
	}
	if err := checkAligned(a, b); err != nil {
		return nil, err
	}

	extent := a.Extent()
	builder := grid.NewBuilder(extent, a.CRS(), a.NoData())
	err := engine.ForEachRow(ctx, extent.Rows, func(unit parallel.WorkUnit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for row := unit.Start; row < unit.End; row++ {
			for col := 0; col < extent.Cols; col++ {
				va, okA := a.Value(col, row)
				vb, okB := b.Value(col, row)
				if !okA || !okB {
					continue
				}
				if v, ok := op.apply(va, vb); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
					builder.Set(col, row, v)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return builder.Build(), nil
}

// ClampBelow replaces values lower than floor with floor. Pipelines keep negative
// heights, this is left to callers wanting a clamped product.
func ClampBelow(g *grid.Grid, floor float64) *grid.Grid {
	builder := grid.NewBuilderFrom(g)
	extent := g.Extent()
	for row := 0; row < extent.Rows; row++ {
		for col := 0; col < extent.Cols; col++ {
			if v, ok := g.Value(col, row); ok && v < floor {
				builder.Set(col, row, floor)
			}
		}
	}
	return builder.Build()
}

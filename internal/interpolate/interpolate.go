// Package interpolate fills the no-data cells of a grid from scattered source points.
package interpolate

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/parallel"
)

// cells per work unit
const cellChunk = 4096

// Result is a filled grid and the cells that stayed empty
type Result struct {
	Grid *grid.Grid
	// Gaps is nil when every cell holds a value
	Gaps *UnresolvedGapWarning
}

// estimator computes a value at a location. Implementations are safe for concurrent use.
type estimator interface {
	Estimate(x, y float64) (float64, bool)
}

// Interpolate fills the no-data cells of g by evaluating method at their centers. Cells
// holding data are copied unchanged. The result depends only on the inputs.
func Interpolate(ctx context.Context, stage string, g *grid.Grid, sources []data.Point, method Method, engine parallel.Engine) (*Result, error) {
	if method == nil {
		return nil, fmt.Errorf("%s: no interpolation method", stage)
	}
	if err := method.Validate(); err != nil {
		return nil, err
	}

	empty := g.NoDataCells()
	if len(empty) == 0 {
		return &Result{Grid: g}, nil
	}

	var est estimator
	switch m := method.(type) {
	case IDW:
		est = newIDW(sources, m)
	case TIN:
		mesh, err := triangulate(ctx, sources)
		if err != nil {
			return nil, err
		}
		est = mesh
	default:
		return nil, fmt.Errorf("%s: unsupported interpolation method %T", stage, method)
	}

	extent := g.Extent()
	builder := grid.NewBuilderFrom(g)
	resolved := make([]bool, len(empty))
	err := engine.ForEach(ctx, len(empty), cellChunk, func(unit parallel.WorkUnit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := unit.Start; i < unit.End; i++ {
			x, y := extent.CellCenter(empty[i])
			if v, ok := est.Estimate(x, y); ok {
				builder.Set(empty[i].Col, empty[i].Row, v)
				resolved[i] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Grid: builder.Build()}
	var gaps []grid.CellIndex
	for i, ok := range resolved {
		if !ok {
			gaps = append(gaps, empty[i])
		}
	}
	if len(gaps) > 0 {
		result.Gaps = &UnresolvedGapWarning{
			Stage:  stage,
			Method: method.Name(),
			Cells:  gaps,
			Total:  extent.Len(),
		}
		glog.Warningln(result.Gaps.Error())
	}
	glog.V(2).Infof("%s: %s filled %d of %d empty cells", stage, method.Name(), len(empty)-len(gaps), len(empty))
	return result, nil
}

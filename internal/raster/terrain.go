package raster

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ecopia-map/als_raster/internal/grid"
	"github.com/ecopia-map/als_raster/internal/parallel"
)

// AngleUnit selects the unit of slope and aspect grids
type AngleUnit string

const (
	Degrees AngleUnit = "DEGREES"
	Radians AngleUnit = "RADIANS"
)

func ParseAngleUnit(value string) (AngleUnit, error) {
	switch AngleUnit(strings.ToUpper(strings.TrimSpace(value))) {
	case Degrees, "DEG", "":
		return Degrees, nil
	case Radians, "RAD":
		return Radians, nil
	}
	return "", fmt.Errorf("unrecognized angle unit %q", value)
}

func (u AngleUnit) convert(radians float64) float64 {
	if u == Radians {
		return radians
	}
	return radians * 180 / math.Pi
}

// Slope computes the steepest gradient angle of every cell from its 3x3 neighbourhood
// (Horn). Border cells and cells with a no-data neighbour are no-data.
func Slope(ctx context.Context, g *grid.Grid, unit AngleUnit, engine parallel.Engine) (*grid.Grid, error) {
	return neighbourhood(ctx, g, engine, func(dzdx, dzdy float64) (float64, bool) {
		return unit.convert(math.Atan(math.Hypot(dzdx, dzdy))), true
	})
}

// Aspect computes the downslope direction of every cell, clockwise from north, in
// [0, 360) degrees or [0, 2π) radians. Flat cells have no aspect and are no-data.
func Aspect(ctx context.Context, g *grid.Grid, unit AngleUnit, engine parallel.Engine) (*grid.Grid, error) {
	return neighbourhood(ctx, g, engine, func(dzdx, dzdy float64) (float64, bool) {
		if dzdx == 0 && dzdy == 0 {
			return 0, false
		}
		a := math.Atan2(-dzdx, -dzdy)
		if a < 0 {
			a += 2 * math.Pi
		}
		if a >= 2*math.Pi {
			a = 0
		}
		return unit.convert(a), true
	})
}

// neighbourhood evaluates fn with the Horn gradients (east and north) of every interior cell
func neighbourhood(ctx context.Context, g *grid.Grid, engine parallel.Engine, fn func(dzdx, dzdy float64) (float64, bool)) (*grid.Grid, error) {
	extent := g.Extent()
	builder := grid.NewBuilder(extent, g.CRS(), g.NoData())
	res := extent.Resolution

	err := engine.ForEachRow(ctx, extent.Rows, func(unit parallel.WorkUnit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var w [3][3]float64 // w[dy+1][dx+1], dy growing northwards
		for row := max(unit.Start, 1); row < min(unit.End, extent.Rows-1); row++ {
		cells:
			for col := 1; col < extent.Cols-1; col++ {
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						v, ok := g.Value(col+dx, row+dy)
						if !ok {
							continue cells
						}
						w[dy+1][dx+1] = v
					}
				}
				dzdx := ((w[2][2] + 2*w[1][2] + w[0][2]) - (w[2][0] + 2*w[1][0] + w[0][0])) / (8 * res)
				dzdy := ((w[2][0] + 2*w[2][1] + w[2][2]) - (w[0][0] + 2*w[0][1] + w[0][2])) / (8 * res)
				if v, ok := fn(dzdx, dzdy); ok {
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

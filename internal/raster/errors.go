package raster

import (
	"fmt"

	"github.com/ecopia-map/als_raster/internal/grid"
)

// GridMismatchError is returned when two grids do not share extent, resolution and CRS
type GridMismatchError struct {
	Reason string
	Left   grid.Extent
	Right  grid.Extent
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("grids are not co-registered: %s (left %s, right %s)", e.Reason, e.Left, e.Right)
}

package converters

import (
	"github.com/ecopia-map/als_raster/internal/data"
)

// CoordinateConverter reprojects coordinate arrays in place between two reference systems
type CoordinateConverter interface {
	ConvertCoordinates(source data.CRS, target data.CRS, xs, ys, zs []float64) error
	Cleanup()
}

// ElevationCorrector adjusts the elevation of a point given its planar coordinates
type ElevationCorrector interface {
	CorrectElevation(x, y, z float64) float64
}

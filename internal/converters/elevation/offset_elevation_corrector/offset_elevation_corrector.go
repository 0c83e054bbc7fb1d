package offset_elevation_corrector

import "github.com/ecopia-map/als_raster/internal/converters"

// OffsetElevationCorrector shifts every elevation by a constant vertical offset
type OffsetElevationCorrector struct {
	Offset float64
}

func NewOffsetElevationCorrector(offset float64) converters.ElevationCorrector {
	return &OffsetElevationCorrector{
		Offset: offset,
	}
}

func (c *OffsetElevationCorrector) CorrectElevation(x, y, z float64) float64 {
	return z + c.Offset
}

package converters

import (
	"fmt"
	"math"
	"sync"

	"github.com/golang/glog"
	proj "github.com/xeonx/proj4"

	"github.com/ecopia-map/als_raster/internal/data"
)

// Proj4CoordinateConverter converts coordinates with the proj.4 library. Initialized
// projections are cached per definition until Cleanup is called.
type Proj4CoordinateConverter struct {
	projections map[string]*proj.Proj
	sync.Mutex
}

func NewProj4CoordinateConverter() CoordinateConverter {
	return &Proj4CoordinateConverter{
		projections: make(map[string]*proj.Proj),
	}
}

// ConvertCoordinates transforms the coordinate arrays in place. Geographic systems are
// expressed in degrees. zs may be nil for a planar transformation.
func (c *Proj4CoordinateConverter) ConvertCoordinates(source data.CRS, target data.CRS, xs, ys, zs []float64) error {
	if len(xs) != len(ys) || (zs != nil && len(zs) != len(xs)) {
		return fmt.Errorf("coordinate arrays differ in length: %d/%d/%d", len(xs), len(ys), len(zs))
	}
	if source.Equal(target) || len(xs) == 0 {
		return nil
	}

	// proj.4 contexts are not safe for concurrent use
	c.Lock()
	defer c.Unlock()

	src, err := c.getProjection(source)
	if err != nil {
		return err
	}
	dst, err := c.getProjection(target)
	if err != nil {
		return err
	}

	// proj.4 works on radians for geographic systems
	if src.IsLatLong() {
		scale(xs, ys, math.Pi/180)
	}
	if err := proj.TransformRaw(src, dst, xs, ys, zs); err != nil {
		return fmt.Errorf("transforming %s to %s: %w", source, target, err)
	}
	if dst.IsLatLong() {
		scale(xs, ys, 180/math.Pi)
	}
	return nil
}

func scale(xs, ys []float64, factor float64) {
	for i := range xs {
		xs[i] *= factor
		ys[i] *= factor
	}
}

func (c *Proj4CoordinateConverter) getProjection(crs data.CRS) (*proj.Proj, error) {
	definition, err := ProjDefinition(crs)
	if err != nil {
		return nil, err
	}
	if projection, ok := c.projections[definition]; ok {
		return projection, nil
	}

	projection, err := proj.InitPlus(definition)
	if err != nil {
		return nil, fmt.Errorf("initializing projection %s: %w", crs, err)
	}
	glog.V(2).Infof("initialized projection %s: %s", crs, definition)
	c.projections[definition] = projection
	return projection, nil
}

// Releases the cached projections
func (c *Proj4CoordinateConverter) Cleanup() {
	c.Lock()
	defer c.Unlock()

	for key, projection := range c.projections {
		projection.Close()
		delete(c.projections, key)
	}
}

package interpolate

import (
	"math"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/pointstore"
)

type idwEstimator struct {
	index  *pointstore.Index
	params IDW
}

func newIDW(sources []data.Point, params IDW) *idwEstimator {
	return &idwEstimator{index: pointstore.NewIndex(sources), params: params}
}

// Estimate weights the neighbours by 1/d^p. A neighbour at distance zero, or a single
// neighbour, yields its own elevation exactly.
func (e *idwEstimator) Estimate(x, y float64) (float64, bool) {
	neighbors := e.index.Nearest(x, y, e.params.K, e.params.RMax)
	switch {
	case len(neighbors) == 0:
		return 0, false
	case len(neighbors) == 1 || neighbors[0].Distance == 0:
		return neighbors[0].Point.Z, true
	}

	var weighted, weights float64
	for _, n := range neighbors {
		w := 1 / math.Pow(n.Distance, e.params.Power)
		weighted += w * n.Point.Z
		weights += w
	}
	return weighted / weights, true
}

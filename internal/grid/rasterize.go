package grid

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/golang/glog"

	"github.com/ecopia-map/als_raster/internal/data"
	"github.com/ecopia-map/als_raster/internal/parallel"
)

// points per work unit while assigning points to cells
const pointChunk = 1 << 16

// Rasterize grids the cloud over the extent of its own bounding box
func Rasterize(ctx context.Context, cloud *data.PointCloud, resolution float64, aggregation Aggregation, engine parallel.Engine) (*Grid, error) {
	extent, err := NewExtent(cloud.Bounds(), resolution)
	if err != nil {
		return nil, err
	}
	return RasterizeOnto(ctx, cloud, extent, aggregation, DefaultNoData, engine)
}

// RasterizeOnto grids the cloud over a given extent. Points outside the extent are ignored,
// cells receiving no point are no-data whatever the aggregation. The result does not depend
// on the order of the points.
func RasterizeOnto(ctx context.Context, cloud *data.PointCloud, extent Extent, aggregation Aggregation, noData float64, engine parallel.Engine) (*Grid, error) {
	if !aggregation.IsValid() {
		return nil, fmt.Errorf("unrecognized aggregation %q", aggregation)
	}
	n := cloud.Len()
	if n > math.MaxInt32 {
		return nil, fmt.Errorf("cannot rasterize %d points at once", n)
	}

	// cell offset of every point, -1 when the point does not contribute
	cellOf := make([]int32, n)
	err := engine.ForEach(ctx, n, pointChunk, func(unit parallel.WorkUnit) error {
		for i := unit.Start; i < unit.End; i++ {
			p := cloud.At(i)
			cellOf[i] = -1
			if aggregation == AggregationFirstReturnMax && !p.IsFirstReturn() {
				continue
			}
			if cell, ok := extent.CellOf(p.X, p.Y); ok {
				cellOf[i] = int32(extent.Offset(cell))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// counting sort of point indices by cell, stable on the point index
	start := make([]int32, extent.Len()+1)
	for _, c := range cellOf {
		if c >= 0 {
			start[c+1]++
		}
	}
	for c := 1; c < len(start); c++ {
		start[c] += start[c-1]
	}
	order := make([]int32, start[len(start)-1])
	next := append([]int32(nil), start[:len(start)-1]...)
	for i, c := range cellOf {
		if c >= 0 {
			order[next[c]] = int32(i)
			next[c]++
		}
	}

	builder := NewBuilder(extent, cloud.CRS(), noData)
	err = engine.ForEachRow(ctx, extent.Rows, func(unit parallel.WorkUnit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var scratch []float64
		for offset := unit.Start * extent.Cols; offset < unit.End*extent.Cols; offset++ {
			members := order[start[offset]:start[offset+1]]
			if len(members) == 0 {
				continue
			}
			scratch = scratch[:0]
			for _, i := range members {
				scratch = append(scratch, cloud.At(int(i)).Z)
			}
			builder.SetOffset(offset, aggregate(aggregation, scratch))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g := builder.Build()
	glog.V(2).Infof("rasterized %d points by %s onto %s, %d cells without data", n, aggregation, extent, g.CountNoData())
	return g, nil
}

// aggregate reduces a non empty set of elevations. zs may be reordered.
func aggregate(aggregation Aggregation, zs []float64) float64 {
	switch aggregation {
	case AggregationCount:
		return float64(len(zs))
	case AggregationMin:
		v := zs[0]
		for _, z := range zs[1:] {
			v = math.Min(v, z)
		}
		return v
	case AggregationMean:
		// summing in sorted order makes the mean independent of point order
		sort.Float64s(zs)
		sum := 0.0
		for _, z := range zs {
			sum += z
		}
		return sum / float64(len(zs))
	default:
		v := zs[0]
		for _, z := range zs[1:] {
			v = math.Max(v, z)
		}
		return v
	}
}

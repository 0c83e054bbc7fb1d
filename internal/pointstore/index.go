package pointstore

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/ecopia-map/als_raster/internal/data"
)

// Neighbor is a point returned by an Index query
type Neighbor struct {
	Index    int // position of the point in the indexed slice
	Point    data.Point
	Distance float64
}

// Index is a planar kd-tree over a fixed set of points. Queries are safe for concurrent use.
type Index struct {
	points []data.Point
	tree   *kdtree.Tree
}

// NewIndex indexes the XY coordinates of the points. The slice is retained and must not
// be modified afterwards.
func NewIndex(points []data.Point) *Index {
	entries := make(planarPoints, len(points))
	for i, p := range points {
		entries[i] = planarPoint{X: p.X, Y: p.Y, index: i}
	}
	var tree *kdtree.Tree
	if len(entries) > 0 {
		tree = kdtree.New(entries, false)
	}
	return &Index{points: points, tree: tree}
}

func (idx *Index) Len() int {
	return len(idx.points)
}

// Nearest returns up to k points closest to (x, y) whose distance does not exceed maxDistance,
// ordered by distance then index. maxDistance <= 0 or +Inf means unbounded.
func (idx *Index) Nearest(x, y float64, k int, maxDistance float64) []Neighbor {
	if idx.tree == nil || k <= 0 {
		return nil
	}
	bounded := maxDistance > 0 && !math.IsInf(maxDistance, 1)
	query := planarPoint{X: x, Y: y, index: -1}

	// The k-th nearest distance bounds a second radius search collecting every point tied at
	// that distance, so the final ordering does not depend on the tree traversal.
	nKeeper := kdtree.NewNKeeper(k)
	idx.tree.NearestSet(nKeeper, query)
	radius2 := -1.0
	found := 0
	for _, c := range nKeeper.Heap {
		if c.Comparable == nil {
			continue
		}
		found++
		radius2 = math.Max(radius2, c.Dist)
	}
	if found == 0 {
		return nil
	}
	if bounded {
		radius2 = math.Min(radius2, maxDistance*maxDistance)
	}

	return idx.withinSquared(query, radius2, k)
}

// Within returns every point whose distance to (x, y) does not exceed radius, ordered by
// distance then index
func (idx *Index) Within(x, y, radius float64) []Neighbor {
	if idx.tree == nil || radius < 0 {
		return nil
	}
	return idx.withinSquared(planarPoint{X: x, Y: y, index: -1}, radius*radius, -1)
}

func (idx *Index) withinSquared(query planarPoint, radius2 float64, limit int) []Neighbor {
	distKeeper := kdtree.NewDistKeeper(radius2)
	idx.tree.NearestSet(distKeeper, query)

	neighbors := make([]Neighbor, 0, len(distKeeper.Heap))
	for _, c := range distKeeper.Heap {
		if c.Comparable == nil || c.Dist > radius2 {
			continue
		}
		p := c.Comparable.(planarPoint)
		neighbors = append(neighbors, Neighbor{
			Index:    p.index,
			Point:    idx.points[p.index],
			Distance: math.Sqrt(c.Dist),
		})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Index < neighbors[j].Index
	})
	if limit >= 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors
}

type planarPoint struct {
	X, Y  float64
	index int
}

func (p planarPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(planarPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

func (p planarPoint) Dims() int { return 2 }

// Distance returns the squared planar distance
func (p planarPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(planarPoint)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

type planarPoints []planarPoint

func (p planarPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p planarPoints) Len() int                              { return len(p) }
func (p planarPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p planarPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{planarPoints: p, Dim: d}, kdtree.MedianOfMedians(pointPlane{planarPoints: p, Dim: d}))
}

type pointPlane struct {
	planarPoints
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.planarPoints[i].X < p.planarPoints[j].X
	case 1:
		return p.planarPoints[i].Y < p.planarPoints[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{planarPoints: p.planarPoints[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.planarPoints[i], p.planarPoints[j] = p.planarPoints[j], p.planarPoints[i]
}

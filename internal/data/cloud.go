package data

import "math"

// Bounds is an axis aligned 2D rectangle in the units of the owning CRS
type Bounds struct {
	XMin, YMin, XMax, YMax float64
}

// EmptyBounds returns inverted bounds that any Extend call replaces
func EmptyBounds() Bounds {
	return Bounds{
		XMin: math.Inf(1), YMin: math.Inf(1),
		XMax: math.Inf(-1), YMax: math.Inf(-1),
	}
}

func (b Bounds) IsEmpty() bool {
	return b.XMin > b.XMax || b.YMin > b.YMax
}

func (b Bounds) Extend(x, y float64) Bounds {
	b.XMin = math.Min(b.XMin, x)
	b.YMin = math.Min(b.YMin, y)
	b.XMax = math.Max(b.XMax, x)
	b.YMax = math.Max(b.YMax, y)
	return b
}

// Contains is inclusive on all edges
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

func (b Bounds) Width() float64 {
	return b.XMax - b.XMin
}

func (b Bounds) Height() float64 {
	return b.YMax - b.YMin
}

// PointCloud is an ordered collection of points sharing one CRS. A cloud is
// never mutated after ingestion; subsets share the backing point slice of their parent.
type PointCloud struct {
	points  []Point
	subset  []int32 // nil when the cloud owns every point of the backing slice
	crs     CRS
	source  string
	filters []string
}

// NewPointCloud wraps the given points. The slice must not be modified afterwards.
func NewPointCloud(points []Point, crs CRS, source string) *PointCloud {
	return &PointCloud{
		points: points,
		crs:    crs,
		source: source,
	}
}

// Subset builds a view over the parent's points selected by indices into the parent's
// own ordering. The description is recorded in the subset provenance.
func (pc *PointCloud) Subset(indices []int32, description string) *PointCloud {
	backing := indices
	if pc.subset != nil {
		backing = make([]int32, len(indices))
		for i, idx := range indices {
			backing[i] = pc.subset[idx]
		}
	}
	filters := make([]string, 0, len(pc.filters)+1)
	filters = append(filters, pc.filters...)
	if description != "" {
		filters = append(filters, description)
	}
	return &PointCloud{
		points:  pc.points,
		subset:  backing,
		crs:     pc.crs,
		source:  pc.source,
		filters: filters,
	}
}

func (pc *PointCloud) Len() int {
	if pc.subset != nil {
		return len(pc.subset)
	}
	return len(pc.points)
}

// At returns the i-th point of the cloud
func (pc *PointCloud) At(i int) Point {
	if pc.subset != nil {
		return pc.points[pc.subset[i]]
	}
	return pc.points[i]
}

// Points returns the cloud points as a freshly allocated slice
func (pc *PointCloud) Points() []Point {
	out := make([]Point, pc.Len())
	for i := range out {
		out[i] = pc.At(i)
	}
	return out
}

func (pc *PointCloud) CRS() CRS {
	return pc.crs
}

func (pc *PointCloud) Source() string {
	return pc.source
}

// Filters lists the descriptions of the filters that produced this cloud, in order
func (pc *PointCloud) Filters() []string {
	return append([]string(nil), pc.filters...)
}

// Bounds computes the 2D bounding box of the cloud. Empty clouds yield empty bounds.
func (pc *PointCloud) Bounds() Bounds {
	b := EmptyBounds()
	for i := 0; i < pc.Len(); i++ {
		p := pc.At(i)
		b = b.Extend(p.X, p.Y)
	}
	return b
}

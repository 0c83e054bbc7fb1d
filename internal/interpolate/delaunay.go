package interpolate

import (
	"context"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/golang/glog"

	"github.com/ecopia-map/als_raster/internal/data"
)

const (
	// half size of the enclosing triangle relative to the span of the points
	superScale = 1000
	// insertions between two context checks
	insertCheckInterval = 4096
	// barycentric tolerance for points on triangle edges
	edgeTolerance = 1e-9
)

type triangle struct {
	id     int
	v      [3]int // counter clockwise vertex positions
	cx, cy float64
	r2     float64 // squared circumradius
	rect   rtreego.Rect
	dead   bool
}

func (t *triangle) Bounds() rtreego.Rect {
	return t.rect
}

type edge struct {
	a, b int
}

// mesh is a Delaunay triangulation of source points. Coordinates are stored relative to
// the center of the points to keep the circumcircle computations precise.
type mesh struct {
	originX, originY float64
	xs, ys, zs       []float64
	triangles        []*triangle
	locator          *rtreego.Rtree
	padding          float64
}

// triangulate builds the Delaunay triangulation of the points by incremental Bowyer-Watson
// insertion. Points sharing XY with a lower indexed point are ignored.
func triangulate(ctx context.Context, points []data.Point) (*mesh, error) {
	order := uniqueXY(points)
	m := &mesh{}
	if len(order) < 3 {
		return m, nil
	}

	bounds := data.EmptyBounds()
	for _, i := range order {
		bounds = bounds.Extend(points[i].X, points[i].Y)
	}
	m.originX = (bounds.XMin + bounds.XMax) / 2
	m.originY = (bounds.YMin + bounds.YMax) / 2
	span := math.Max(bounds.Width(), bounds.Height())
	if span == 0 {
		return m, nil
	}
	m.padding = span * 1e-12

	sortForInsertion(order, points, bounds)
	n := len(order)
	m.xs = make([]float64, n+3)
	m.ys = make([]float64, n+3)
	m.zs = make([]float64, n+3)
	for pos, i := range order {
		m.xs[pos] = points[i].X - m.originX
		m.ys[pos] = points[i].Y - m.originY
		m.zs[pos] = points[i].Z
	}
	s := span * superScale
	m.xs[n], m.ys[n] = -s, -s
	m.xs[n+1], m.ys[n+1] = s, -s
	m.xs[n+2], m.ys[n+2] = 0, s

	tree := rtreego.NewTree(2, 25, 50)
	var all []*triangle
	add := func(a, b, c int) {
		t := m.newTriangle(len(all), a, b, c)
		all = append(all, t)
		tree.Insert(t)
	}
	add(n, n+1, n+2)

	for pos := 0; pos < n; pos++ {
		if pos%insertCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cavity := m.cavity(tree, pos)
		if len(cavity) == 0 {
			glog.V(3).Infof("tin: vertex %d not inserted, no enclosing circumcircle", pos)
			continue
		}

		directed := make(map[edge]bool, len(cavity)*3)
		for _, t := range cavity {
			for k := 0; k < 3; k++ {
				directed[edge{t.v[k], t.v[(k+1)%3]}] = true
			}
		}
		for _, t := range cavity {
			t.dead = true
			tree.Delete(t)
		}
		for _, t := range cavity {
			for k := 0; k < 3; k++ {
				e := edge{t.v[k], t.v[(k+1)%3]}
				if !directed[edge{e.b, e.a}] {
					add(e.a, e.b, pos)
				}
			}
		}
	}

	m.locator = rtreego.NewTree(2, 25, 50)
	for _, t := range all {
		if t.dead || t.v[0] >= n || t.v[1] >= n || t.v[2] >= n {
			continue
		}
		t.rect = m.boxOf(t)
		m.triangles = append(m.triangles, t)
		m.locator.Insert(t)
	}
	glog.V(2).Infof("tin: %d vertices, %d triangles", n, len(m.triangles))
	return m, nil
}

// cavity returns the connected set of triangles whose circumcircle strictly contains the
// vertex, grown from a triangle containing it, ordered by creation
func (m *mesh) cavity(tree *rtreego.Rtree, pos int) []*triangle {
	px, py := m.xs[pos], m.ys[pos]
	var bad []*triangle
	for _, s := range tree.SearchIntersect(m.pointRect(px, py)) {
		t := s.(*triangle)
		dx, dy := px-t.cx, py-t.cy
		if dx*dx+dy*dy < t.r2 {
			bad = append(bad, t)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Slice(bad, func(i, j int) bool { return bad[i].id < bad[j].id })

	seed := -1
	for i, t := range bad {
		if _, ok := m.barycentric(t, px, py); ok {
			seed = i
			break
		}
	}
	if seed < 0 {
		return bad
	}

	byEdge := make(map[edge][]int, len(bad)*3)
	for i, t := range bad {
		for k := 0; k < 3; k++ {
			byEdge[undirected(t.v[k], t.v[(k+1)%3])] = append(byEdge[undirected(t.v[k], t.v[(k+1)%3])], i)
		}
	}
	visited := make([]bool, len(bad))
	visited[seed] = true
	queue := []int{seed}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		t := bad[i]
		for k := 0; k < 3; k++ {
			for _, j := range byEdge[undirected(t.v[k], t.v[(k+1)%3])] {
				if !visited[j] {
					visited[j] = true
					queue = append(queue, j)
				}
			}
		}
	}
	connected := bad[:0]
	for i, t := range bad {
		if visited[i] {
			connected = append(connected, t)
		}
	}
	return connected
}

func undirected(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

func (m *mesh) newTriangle(id, a, b, c int) *triangle {
	t := &triangle{id: id, v: [3]int{a, b, c}}
	ax, ay := m.xs[a], m.ys[a]
	bx, by := m.xs[b]-ax, m.ys[b]-ay
	cx, cy := m.xs[c]-ax, m.ys[c]-ay
	d := 2 * (bx*cy - by*cx)

	const limit = 1e150
	if d == 0 {
		// collinear: every point is considered inside until the triangle is replaced
		t.cx, t.cy, t.r2 = 0, 0, math.Inf(1)
		t.rect = m.rect(-limit, -limit, limit, limit)
		return t
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	t.cx, t.cy = ax+ux, ay+uy
	t.r2 = ux*ux + uy*uy
	r := math.Sqrt(t.r2)
	t.rect = m.rect(t.cx-r, t.cy-r, t.cx+r, t.cy+r)
	return t
}

func (m *mesh) boxOf(t *triangle) rtreego.Rect {
	xmin, ymin := math.Inf(1), math.Inf(1)
	xmax, ymax := math.Inf(-1), math.Inf(-1)
	for _, v := range t.v {
		xmin, xmax = math.Min(xmin, m.xs[v]), math.Max(xmax, m.xs[v])
		ymin, ymax = math.Min(ymin, m.ys[v]), math.Max(ymax, m.ys[v])
	}
	return m.rect(xmin, ymin, xmax, ymax)
}

// rect builds an R-tree rectangle, widening degenerate sides since the tree rejects
// zero lengths
func (m *mesh) rect(xmin, ymin, xmax, ymax float64) rtreego.Rect {
	pad := math.Max(m.padding, 1e-300)
	r, _ := rtreego.NewRect(rtreego.Point{xmin - pad, ymin - pad}, []float64{xmax - xmin + 2*pad, ymax - ymin + 2*pad})
	return r
}

func (m *mesh) pointRect(x, y float64) rtreego.Rect {
	return m.rect(x, y, x, y)
}

// barycentric returns the weights of (x, y) relative to the triangle vertices and whether
// the location lies inside or on the triangle
func (m *mesh) barycentric(t *triangle, x, y float64) ([3]float64, bool) {
	x1, y1 := m.xs[t.v[0]], m.ys[t.v[0]]
	x2, y2 := m.xs[t.v[1]], m.ys[t.v[1]]
	x3, y3 := m.xs[t.v[2]], m.ys[t.v[2]]
	det := (y2-y3)*(x1-x3) + (x3-x2)*(y1-y3)
	if det == 0 {
		return [3]float64{}, false
	}
	l1 := ((y2-y3)*(x-x3) + (x3-x2)*(y-y3)) / det
	l2 := ((y3-y1)*(x-x3) + (x1-x3)*(y-y3)) / det
	l3 := 1 - l1 - l2
	inside := l1 >= -edgeTolerance && l2 >= -edgeTolerance && l3 >= -edgeTolerance
	return [3]float64{l1, l2, l3}, inside
}

// Estimate interpolates linearly inside the triangle containing (x, y). Locations outside
// the convex hull of the points are not resolved.
func (m *mesh) Estimate(x, y float64) (float64, bool) {
	if m.locator == nil {
		return 0, false
	}
	qx, qy := x-m.originX, y-m.originY
	hits := m.locator.SearchIntersect(m.pointRect(qx, qy))
	sort.Slice(hits, func(i, j int) bool { return hits[i].(*triangle).id < hits[j].(*triangle).id })
	for _, s := range hits {
		t := s.(*triangle)
		if w, ok := m.barycentric(t, qx, qy); ok {
			return w[0]*m.zs[t.v[0]] + w[1]*m.zs[t.v[1]] + w[2]*m.zs[t.v[2]], true
		}
	}
	return 0, false
}

// uniqueXY returns the indices of the points, dropping any point whose XY equals the XY of
// a point with a lower index
func uniqueXY(points []data.Point) []int {
	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := points[order[i]], points[order[j]]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return order[i] < order[j]
	})
	unique := order[:0]
	for k, i := range order {
		if k > 0 {
			prev := points[unique[len(unique)-1]]
			if prev.X == points[i].X && prev.Y == points[i].Y {
				continue
			}
		}
		unique = append(unique, i)
	}
	return unique
}

// sortForInsertion orders points bucket by bucket along a serpentine path so consecutive
// insertions stay close to each other
func sortForInsertion(order []int, points []data.Point, bounds data.Bounds) {
	buckets := int(math.Sqrt(float64(len(order)))/2) + 1
	bucketOf := func(v, low, span float64) int {
		if span == 0 {
			return 0
		}
		b := int((v - low) / span * float64(buckets))
		if b >= buckets {
			b = buckets - 1
		}
		return b
	}
	type key struct{ row, col, index int }
	keys := make([]key, len(points))
	for _, i := range order {
		row := bucketOf(points[i].Y, bounds.YMin, bounds.Height())
		col := bucketOf(points[i].X, bounds.XMin, bounds.Width())
		if row%2 == 1 {
			col = buckets - 1 - col
		}
		keys[i] = key{row, col, i}
	}
	sort.Slice(order, func(a, b int) bool {
		ka, kb := keys[order[a]], keys[order[b]]
		if ka.row != kb.row {
			return ka.row < kb.row
		}
		if ka.col != kb.col {
			return ka.col < kb.col
		}
		return ka.index < kb.index
	})
}

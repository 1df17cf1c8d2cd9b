package register

import (
	"fmt"
	"math"
)

// Point is a 2-D coordinate in image pixel space.
type Point struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// PointSet is an ordered collection of points. Reference grids are row-major
// and their order is significant; detected spot sets carry no order guarantee
// and correspondence to the grid is established only by nearest-match scoring.
type PointSet []Point

// Centroid returns the arithmetic mean of the set, or the zero point for an
// empty set.
func (ps PointSet) Centroid() Point {
	if len(ps) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range ps {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(ps))
	return Point{X: sx / n, Y: sy / n}
}

// Select returns the points at the given index positions, in the given order.
// Index positions are stable because grid generation is deterministic.
func (ps PointSet) Select(indexes []int) (PointSet, error) {
	out := make(PointSet, 0, len(indexes))
	for _, idx := range indexes {
		if idx < 0 || idx >= len(ps) {
			return nil, fmt.Errorf("point index %d out of range [0,%d)", idx, len(ps))
		}
		out = append(out, ps[idx])
	}
	return out, nil
}

// Bounds returns the axis-aligned bounding box of the set. The zero box is
// returned for an empty set.
func (ps PointSet) Bounds() (min, max Point) {
	if len(ps) == 0 {
		return Point{}, Point{}
	}
	min, max = ps[0], ps[0]
	for _, p := range ps[1:] {
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
	}
	return min, max
}

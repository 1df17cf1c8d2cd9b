package register

import (
	"fmt"
	"math"
)

// minDeterminant is the smallest linear-part determinant accepted before a
// transform is treated as degenerate.
const minDeterminant = 1e-12

// Transform is a 2x3 affine matrix in row-major order:
//
//	[ M0 M1 M2 ]   [ x ]
//	[ M3 M4 M5 ] * [ y ]
//	               [ 1 ]
//
// Transforms produced by this package are similarities (rotation plus uniform
// scale plus translation), so the determinant of the linear part equals the
// square of the scale factor. No shear or reflection is ever introduced.
type Transform struct {
	M [6]float64
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{M: [6]float64{1, 0, 0, 0, 1, 0}}
}

// Similarity builds the transform that rotates by theta (radians,
// counter-clockwise) and scales by scale about centre, then moves centre to
// (tx, ty). The centre convention keeps rotation and translation parameters
// decoupled for grids that are generated far from the image origin.
func Similarity(centre Point, tx, ty, theta, scale float64) Transform {
	a := scale * math.Cos(theta)
	b := scale * math.Sin(theta)
	return Transform{M: [6]float64{
		a, -b, tx - a*centre.X + b*centre.Y,
		b, a, ty - b*centre.X - a*centre.Y,
	}}
}

// Apply maps a single point.
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t.M[0]*p.X + t.M[1]*p.Y + t.M[2],
		Y: t.M[3]*p.X + t.M[4]*p.Y + t.M[5],
	}
}

// Det returns the determinant of the linear part. For a well-formed
// similarity this equals scale squared.
func (t Transform) Det() float64 {
	return t.M[0]*t.M[4] - t.M[1]*t.M[3]
}

// IsFinite reports whether every matrix cell is a finite number.
func (t Transform) IsFinite() bool {
	for _, v := range t.M {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Params decomposes the transform back into (tx, ty, theta, scale) relative
// to the same centre convention used by Similarity. (tx, ty) is the image
// position centre maps to.
func (t Transform) Params(centre Point) (tx, ty, theta, scale float64) {
	mapped := t.Apply(centre)
	return mapped.X, mapped.Y, math.Atan2(t.M[3], t.M[0]), math.Hypot(t.M[0], t.M[3])
}

// Invert returns the inverse transform. It fails with ErrInvalidTransform when
// the matrix is non-finite or its linear part is degenerate.
func (t Transform) Invert() (Transform, error) {
	if !t.IsFinite() {
		return Transform{}, fmt.Errorf("cannot invert non-finite matrix: %w", ErrInvalidTransform)
	}
	det := t.Det()
	if math.Abs(det) < minDeterminant {
		return Transform{}, fmt.Errorf("cannot invert matrix with determinant %g: %w", det, ErrInvalidTransform)
	}
	ia := t.M[4] / det
	ib := -t.M[1] / det
	ic := -t.M[3] / det
	id := t.M[0] / det
	return Transform{M: [6]float64{
		ia, ib, -(ia*t.M[2] + ib*t.M[5]),
		ic, id, -(ic*t.M[2] + id*t.M[5]),
	}}, nil
}

// ApplyTransform maps every point in pts through t, producing the registered
// point set. The input set is never modified. A non-finite or degenerate
// matrix is rejected with ErrInvalidTransform rather than producing
// meaningless coordinates.
func ApplyTransform(t Transform, pts PointSet) (PointSet, error) {
	if !t.IsFinite() {
		return nil, fmt.Errorf("transform has non-finite cells: %w", ErrInvalidTransform)
	}
	if t.Det() < minDeterminant {
		return nil, fmt.Errorf("transform determinant %g is not positive: %w", t.Det(), ErrInvalidTransform)
	}
	out := make(PointSet, len(pts))
	for i, p := range pts {
		out[i] = t.Apply(p)
	}
	return out, nil
}

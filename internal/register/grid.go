package register

import "fmt"

// GridSpec describes the expected printed layout of a well: a rectangular
// lattice of Rows x Cols spots with uniform centre-to-centre spacing in
// pixels. It is supplied by configuration and read-only to the estimator.
type GridSpec struct {
	Rows    int
	Cols    int
	Spacing float64
}

// Size returns the number of grid positions.
func (g GridSpec) Size() int {
	return g.Rows * g.Cols
}

// Validate checks that the layout describes a usable lattice.
func (g GridSpec) Validate() error {
	if g.Rows < 1 || g.Cols < 1 {
		return fmt.Errorf("grid must have at least one row and one column, got %dx%d", g.Rows, g.Cols)
	}
	if g.Spacing <= 0 {
		return fmt.Errorf("grid spacing must be positive, got %g", g.Spacing)
	}
	return nil
}

// ReferenceGrid builds the idealized, noise-free spot positions for the given
// layout, centred on centre, in row-major order (row 0 first, columns left to
// right). The order is deterministic so that fiducial positions can be
// selected by fixed index.
func ReferenceGrid(centre Point, spec GridSpec) PointSet {
	grid := make(PointSet, 0, spec.Size())
	x0 := centre.X - float64(spec.Cols-1)/2*spec.Spacing
	y0 := centre.Y - float64(spec.Rows-1)/2*spec.Spacing
	for r := 0; r < spec.Rows; r++ {
		y := y0 + float64(r)*spec.Spacing
		for c := 0; c < spec.Cols; c++ {
			grid = append(grid, Point{X: x0 + float64(c)*spec.Spacing, Y: y})
		}
	}
	return grid
}

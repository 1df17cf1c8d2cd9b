package register

import (
	"errors"
	"math"
	"testing"
)

func TestIdentity_LeavesPointsUnchanged(t *testing.T) {
	id := Identity()
	p := Point{X: 123.4, Y: -56.7}

	if got := id.Apply(p); got != p {
		t.Errorf("identity moved point: got %v, want %v", got, p)
	}
	if d := id.Det(); d != 1 {
		t.Errorf("identity determinant = %g, want 1", d)
	}
}

func TestSimilarity_RotatesAboutCentre(t *testing.T) {
	centre := Point{X: 100, Y: 100}
	// Quarter turn about the centre, no translation of the centre itself.
	tr := Similarity(centre, centre.X, centre.Y, math.Pi/2, 1)

	if got := tr.Apply(centre); math.Abs(got.X-100) > 1e-9 || math.Abs(got.Y-100) > 1e-9 {
		t.Errorf("centre moved to %v", got)
	}
	got := tr.Apply(Point{X: 110, Y: 100})
	if math.Abs(got.X-100) > 1e-9 || math.Abs(got.Y-110) > 1e-9 {
		t.Errorf("rotated point = %v, want (100, 110)", got)
	}
}

func TestTransform_DetEqualsScaleSquared(t *testing.T) {
	tests := []struct {
		theta float64
		scale float64
	}{
		{0, 1},
		{0.3, 1.02},
		{-0.7, 0.95},
		{math.Pi / 3, 2},
	}

	for _, tt := range tests {
		tr := Similarity(Point{X: 10, Y: 20}, 35, -4, tt.theta, tt.scale)
		want := tt.scale * tt.scale
		if got := tr.Det(); math.Abs(got-want) > 1e-9 {
			t.Errorf("theta=%g scale=%g: det = %g, want %g", tt.theta, tt.scale, got, want)
		}
	}
}

func TestTransform_ParamsRoundTrip(t *testing.T) {
	centre := Point{X: 612, Y: 488}
	wantTX, wantTY := 627.0, 480.0
	wantTheta, wantScale := 3*math.Pi/180, 1.02

	tr := Similarity(centre, wantTX, wantTY, wantTheta, wantScale)
	tx, ty, theta, scale := tr.Params(centre)

	if math.Abs(tx-wantTX) > 1e-9 || math.Abs(ty-wantTY) > 1e-9 {
		t.Errorf("translation = (%g, %g), want (%g, %g)", tx, ty, wantTX, wantTY)
	}
	if math.Abs(theta-wantTheta) > 1e-12 {
		t.Errorf("theta = %g, want %g", theta, wantTheta)
	}
	if math.Abs(scale-wantScale) > 1e-12 {
		t.Errorf("scale = %g, want %g", scale, wantScale)
	}
}

func TestTransform_InvertRoundTrip(t *testing.T) {
	centre := Point{X: 300, Y: 250}
	tr := Similarity(centre, 315, 242, 0.05, 1.015)
	inv, err := tr.Invert()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pts := ReferenceGrid(centre, GridSpec{Rows: 4, Cols: 5, Spacing: 82})
	mapped, err := ApplyTransform(tr, pts)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	back, err := ApplyTransform(inv, mapped)
	if err != nil {
		t.Fatalf("apply inverse: %v", err)
	}

	for i := range pts {
		if d := pts[i].DistanceTo(back[i]); d > 1e-9 {
			t.Fatalf("point %d off by %g after round trip", i, d)
		}
	}
}

func TestTransform_InvertDegenerate(t *testing.T) {
	var zero Transform
	if _, err := zero.Invert(); !errors.Is(err, ErrInvalidTransform) {
		t.Errorf("expected ErrInvalidTransform, got %v", err)
	}
}

func TestApplyTransform_RejectsNonFinite(t *testing.T) {
	tr := Identity()
	tr.M[2] = math.NaN()

	_, err := ApplyTransform(tr, PointSet{{X: 1, Y: 2}})
	if !errors.Is(err, ErrInvalidTransform) {
		t.Errorf("expected ErrInvalidTransform, got %v", err)
	}
}

func TestApplyTransform_RejectsDegenerate(t *testing.T) {
	// Reflection has negative determinant and is not a similarity.
	reflect := Transform{M: [6]float64{-1, 0, 0, 0, 1, 0}}

	_, err := ApplyTransform(reflect, PointSet{{X: 1, Y: 2}})
	if !errors.Is(err, ErrInvalidTransform) {
		t.Errorf("expected ErrInvalidTransform, got %v", err)
	}
}

func TestApplyTransform_DoesNotMutateInput(t *testing.T) {
	pts := PointSet{{X: 1, Y: 2}, {X: 3, Y: 4}}
	tr := Similarity(Point{}, 10, 10, 0.1, 1.1)

	if _, err := ApplyTransform(tr, pts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts[0] != (Point{X: 1, Y: 2}) || pts[1] != (Point{X: 3, Y: 4}) {
		t.Error("input point set was modified")
	}
}

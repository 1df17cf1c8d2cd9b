// Package intensity measures per-spot signal in a registered well. A low-order
// polynomial surface fitted to the membrane estimates the local background,
// and each grid position's optical density is the log ratio of background to
// spot luminance.
package intensity

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/assay.report/internal/register"
	"github.com/banshee-data/assay.report/internal/spots"
)

// Surface is a polynomial background model over image coordinates.
// Coordinates are normalized to the fitted rectangle internally so the least
// squares problem stays well conditioned at scan resolutions.
type Surface struct {
	order  int
	coeffs []float64
	cx, cy float64
	sx, sy float64
}

// Eval returns the background luminance estimate at (x, y).
func (s *Surface) Eval(x, y float64) float64 {
	terms := make([]float64, termCount(s.order))
	fillTerms(terms, (x-s.cx)/s.sx, (y-s.cy)/s.sy, s.order)
	var v float64
	for i, c := range s.coeffs {
		v += c * terms[i]
	}
	return v
}

// CropRect returns the bounding box of the registered grid expanded by margin
// pixels on every side, clamped to the image bounds.
func CropRect(registered register.PointSet, img *spots.WellImage, margin float64) image.Rectangle {
	min, max := registered.Bounds()
	r := image.Rect(
		int(math.Floor(min.X-margin)),
		int(math.Floor(min.Y-margin)),
		int(math.Ceil(max.X+margin))+1,
		int(math.Ceil(max.Y+margin))+1,
	)
	return r.Intersect(image.Rect(0, 0, img.Width, img.Height))
}

// FitBackground fits an order-degree polynomial surface to the luminance of
// pixels sampled every stride pixels inside rect. Spots occupy a small
// fraction of the membrane, so a strided global fit tracks illumination
// falloff without masking them out first.
func FitBackground(img *spots.WellImage, rect image.Rectangle, order, stride int) (*Surface, error) {
	if order < 1 || order > 3 {
		return nil, fmt.Errorf("background order must be 1..3, got %d", order)
	}
	if stride < 1 {
		return nil, fmt.Errorf("background stride must be at least 1, got %d", stride)
	}
	rect = rect.Intersect(image.Rect(0, 0, img.Width, img.Height))
	if rect.Empty() {
		return nil, fmt.Errorf("background region is empty")
	}

	s := &Surface{
		order: order,
		cx:    float64(rect.Min.X+rect.Max.X) / 2,
		cy:    float64(rect.Min.Y+rect.Max.Y) / 2,
		sx:    math.Max(float64(rect.Dx())/2, 1),
		sy:    math.Max(float64(rect.Dy())/2, 1),
	}

	terms := termCount(order)
	var rows int
	for y := rect.Min.Y; y < rect.Max.Y; y += stride {
		for x := rect.Min.X; x < rect.Max.X; x += stride {
			rows++
		}
	}
	if rows < terms {
		return nil, fmt.Errorf("%d samples cannot constrain %d surface terms", rows, terms)
	}

	a := mat.NewDense(rows, terms, nil)
	b := mat.NewVecDense(rows, nil)
	row := make([]float64, terms)
	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y += stride {
		for x := rect.Min.X; x < rect.Max.X; x += stride {
			fillTerms(row, (float64(x)-s.cx)/s.sx, (float64(y)-s.cy)/s.sy, order)
			a.SetRow(i, row)
			b.SetVec(i, float64(img.At(x, y)))
			i++
		}
	}

	coeffs := mat.NewVecDense(terms, nil)
	if err := coeffs.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("background fit failed: %w", err)
	}
	s.coeffs = make([]float64, terms)
	for i := range s.coeffs {
		s.coeffs[i] = coeffs.AtVec(i)
	}
	return s, nil
}

func termCount(order int) int {
	return (order + 1) * (order + 2) / 2
}

// fillTerms writes the monomials u^i * v^j for i+j <= order, ordered by total
// degree. The ordering must stay stable between fit and eval.
func fillTerms(dst []float64, u, v float64, order int) {
	i := 0
	for total := 0; total <= order; total++ {
		for ix := total; ix >= 0; ix-- {
			iy := total - ix
			dst[i] = math.Pow(u, float64(ix)) * math.Pow(v, float64(iy))
			i++
		}
	}
}

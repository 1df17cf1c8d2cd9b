package intensity

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/assay.report/internal/register"
	"github.com/banshee-data/assay.report/internal/spots"
)

// MeasureConfig controls per-spot sampling.
type MeasureConfig struct {
	// SpotRadius is the sampling disc radius in pixels. It should sit inside
	// the printed spot, not cover it.
	SpotRadius float64
	// Margin expands the background-fit region beyond the grid bounds.
	Margin float64
	// BackgroundOrder and BackgroundStride shape the surface fit.
	BackgroundOrder  int
	BackgroundStride int
	// ODEpsilon guards the log ratio against zero luminance.
	ODEpsilon float64
}

// DefaultMeasureConfig matches the production layout (82px spot pitch).
func DefaultMeasureConfig() MeasureConfig {
	return MeasureConfig{
		SpotRadius:       15,
		Margin:           60,
		BackgroundOrder:  2,
		BackgroundStride: 8,
		ODEpsilon:        1,
	}
}

// Measurement is one grid position's signal.
type Measurement struct {
	Row        int
	Col        int
	Centre     register.Point
	Median     float64
	Mean       float64
	Background float64
	OD         float64
}

// MeasureGrid samples every registered grid position. The spot value is the
// median luminance inside the sampling disc; the background comes from the
// fitted surface at the spot centre. OD is log10(background/spot), clamped at
// zero when the spot is no darker than the membrane. Positions whose sampling
// disc falls entirely outside the image get NaN values rather than failing
// the well.
func MeasureGrid(img *spots.WellImage, registered register.PointSet, spec register.GridSpec, cfg MeasureConfig) ([]Measurement, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(registered) != spec.Size() {
		return nil, fmt.Errorf("registered grid has %d points, spec wants %d", len(registered), spec.Size())
	}
	if cfg.SpotRadius <= 0 {
		return nil, fmt.Errorf("spot radius must be positive, got %g", cfg.SpotRadius)
	}

	rect := CropRect(registered, img, cfg.Margin)
	if rect.Empty() {
		return nil, fmt.Errorf("registered grid lies outside the image")
	}
	surface, err := FitBackground(img, rect, cfg.BackgroundOrder, cfg.BackgroundStride)
	if err != nil {
		return nil, fmt.Errorf("fitting background: %w", err)
	}

	out := make([]Measurement, 0, len(registered))
	values := make([]float64, 0, int(4*cfg.SpotRadius*cfg.SpotRadius)+8)
	for i, centre := range registered {
		m := Measurement{
			Row:    i / spec.Cols,
			Col:    i % spec.Cols,
			Centre: centre,
		}

		values = discValues(values[:0], img, centre, cfg.SpotRadius)
		if len(values) == 0 {
			m.Median, m.Mean, m.Background, m.OD = math.NaN(), math.NaN(), math.NaN(), math.NaN()
			out = append(out, m)
			continue
		}

		m.Median = median(values)
		m.Mean = mean(values)
		m.Background = surface.Eval(centre.X, centre.Y)
		od := math.Log10((m.Background + cfg.ODEpsilon) / (m.Median + cfg.ODEpsilon))
		if od < 0 || math.IsNaN(od) {
			od = 0
		}
		m.OD = od
		out = append(out, m)
	}
	return out, nil
}

// discValues collects luminances within radius of centre, clamped to the
// image.
func discValues(dst []float64, img *spots.WellImage, centre register.Point, radius float64) []float64 {
	r2 := radius * radius
	x0 := int(math.Floor(centre.X - radius))
	x1 := int(math.Ceil(centre.X + radius))
	y0 := int(math.Floor(centre.Y - radius))
	y1 := int(math.Ceil(centre.Y + radius))
	for y := y0; y <= y1; y++ {
		if y < 0 || y >= img.Height {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < 0 || x >= img.Width {
				continue
			}
			dx := float64(x) - centre.X
			dy := float64(y) - centre.Y
			if dx*dx+dy*dy <= r2 {
				dst = append(dst, float64(img.At(x, y)))
			}
		}
	}
	return dst
}

func median(xs []float64) float64 {
	sort.Float64s(xs)
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

func mean(xs []float64) float64 {
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

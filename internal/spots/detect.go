package spots

import (
	"fmt"

	"github.com/banshee-data/assay.report/internal/register"
)

// Spot is one connected foreground region large enough to be a printed spot.
type Spot struct {
	// Centre is the pixel centroid of the region.
	Centre register.Point
	// Area is the region's pixel count.
	Area int
}

// DetectConfig controls spot extraction.
type DetectConfig struct {
	// MinArea rejects connected regions smaller than this many pixels
	// (dust, noise specks).
	MinArea int
	// MaxArea rejects regions larger than this many pixels when positive
	// (well rims, smears). Zero disables the cap.
	MaxArea int
	// Threshold overrides the histogram estimate when nonzero.
	Threshold uint8
	// Invert detects bright spots on a dark background instead.
	Invert bool
}

// DefaultDetectConfig matches the production well layout: spots are dark,
// roughly 250px² or larger at scan resolution.
func DefaultDetectConfig() DetectConfig {
	return DetectConfig{MinArea: 250, MaxArea: 0, Threshold: 0, Invert: false}
}

// Detect extracts spot centroids from a well image. Regions are found by
// connected-component expansion (4-connectivity) over the thresholded mask
// and filtered by area. The returned order is scan order with no
// correspondence to any printed layout.
func Detect(img *WellImage, cfg DetectConfig) ([]Spot, error) {
	if cfg.MinArea < 1 {
		return nil, fmt.Errorf("min area must be at least 1, got %d", cfg.MinArea)
	}

	thr := cfg.Threshold
	if thr == 0 {
		est, err := EstimateThreshold(img)
		if err != nil {
			return nil, fmt.Errorf("estimating threshold: %w", err)
		}
		thr = est
	}

	foreground := func(v uint8) bool { return v < thr }
	if cfg.Invert {
		foreground = func(v uint8) bool { return v >= thr }
	}

	var spots []Spot
	visited := make([]bool, len(img.Pix))
	stack := make([]int, 0, 1024)

	for start, v := range img.Pix {
		if visited[start] || !foreground(v) {
			continue
		}

		// Flood the component, accumulating the centroid as we go.
		area := 0
		var sumX, sumY float64
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			x := idx % img.Width
			y := idx / img.Width
			area++
			sumX += float64(x)
			sumY += float64(y)

			if x > 0 {
				stack = pushIfForeground(stack, visited, img, foreground, idx-1)
			}
			if x < img.Width-1 {
				stack = pushIfForeground(stack, visited, img, foreground, idx+1)
			}
			if y > 0 {
				stack = pushIfForeground(stack, visited, img, foreground, idx-img.Width)
			}
			if y < img.Height-1 {
				stack = pushIfForeground(stack, visited, img, foreground, idx+img.Width)
			}
		}

		if area < cfg.MinArea {
			continue
		}
		if cfg.MaxArea > 0 && area > cfg.MaxArea {
			continue
		}
		spots = append(spots, Spot{
			Centre: register.Point{X: sumX / float64(area), Y: sumY / float64(area)},
			Area:   area,
		})
	}

	return spots, nil
}

func pushIfForeground(stack []int, visited []bool, img *WellImage, foreground func(uint8) bool, idx int) []int {
	if visited[idx] || !foreground(img.Pix[idx]) {
		return stack
	}
	visited[idx] = true
	return append(stack, idx)
}

// Centres projects a spot list to the point set the estimator consumes.
func Centres(spots []Spot) register.PointSet {
	pts := make(register.PointSet, len(spots))
	for i, s := range spots {
		pts[i] = s.Centre
	}
	return pts
}

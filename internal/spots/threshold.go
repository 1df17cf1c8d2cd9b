package spots

import "errors"

const (
	luminanceBits    = 5
	luminanceShift   = 8 - luminanceBits
	luminanceBuckets = 1 << luminanceBits
)

// ErrNoContrast means the luminance histogram has no usable two-peak
// structure, so no threshold separates spots from background. Blank wells and
// saturated exposures land here.
var ErrNoContrast = errors.New("image has no usable foreground/background contrast")

// EstimateThreshold picks the luminance value separating dark print from the
// light background. It buckets the histogram, finds the tallest peak and the
// peak that best balances height against distance from the first, then scores
// the valley between them. Pixels strictly below the returned value are
// foreground for a dark-on-light well.
func EstimateThreshold(img *WellImage) (uint8, error) {
	var buckets [luminanceBuckets]int
	for _, v := range img.Pix {
		buckets[v>>luminanceShift]++
	}

	maxBucketCount := 0
	firstPeak := 0
	firstPeakSize := 0
	for x := 0; x < luminanceBuckets; x++ {
		if buckets[x] > firstPeakSize {
			firstPeak = x
			firstPeakSize = buckets[x]
		}
		if buckets[x] > maxBucketCount {
			maxBucketCount = buckets[x]
		}
	}

	secondPeak := 0
	secondPeakScore := 0
	for x := 0; x < luminanceBuckets; x++ {
		dist := x - firstPeak
		score := buckets[x] * dist * dist
		if score > secondPeakScore {
			secondPeak = x
			secondPeakScore = score
		}
	}

	// No mass outside the first peak means a unimodal histogram.
	if secondPeakScore == 0 {
		return 0, ErrNoContrast
	}

	if firstPeak > secondPeak {
		firstPeak, secondPeak = secondPeak, firstPeak
	}

	// Peaks too close together mean a unimodal histogram.
	if secondPeak-firstPeak <= luminanceBuckets/16 {
		return 0, ErrNoContrast
	}

	bestValley := secondPeak - 1
	bestValleyScore := -1
	for x := secondPeak - 1; x > firstPeak; x-- {
		fromFirst := x - firstPeak
		score := fromFirst * fromFirst * (secondPeak - x) * (maxBucketCount - buckets[x])
		if score > bestValleyScore {
			bestValley = x
			bestValleyScore = score
		}
	}

	return uint8(bestValley << luminanceShift), nil
}

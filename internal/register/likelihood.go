package register

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// nearestDistance returns the Euclidean distance from p to the closest point
// in observed. Multiple projected points may share the same nearest observed
// point; no exclusivity is enforced, which is what keeps a spurious detection
// from corrupting matches far away from it.
func nearestDistance(p Point, observed PointSet) float64 {
	best := math.Inf(1)
	for _, q := range observed {
		if d := p.DistanceTo(q); d < best {
			best = d
		}
	}
	return best
}

// transformWeight scores a transform hypothesis against the observations. Each
// fiducial is projected through t and matched to its nearest observed point;
// the weight is the product of the Gaussian densities of the residual
// distances. Distant hypotheses underflow to exactly zero, which the filter
// loop detects as divergence when it happens to the whole population.
func transformWeight(t Transform, fiducials, observed PointSet, residual distuv.Normal) float64 {
	w := 1.0
	for _, f := range fiducials {
		w *= residual.Prob(nearestDistance(t.Apply(f), observed))
	}
	return w
}

// fiducialRMSE is the root mean square of nearest-neighbour residuals for the
// fiducials under t. It is the quality figure reported with a registration.
func fiducialRMSE(t Transform, fiducials, observed PointSet) float64 {
	if len(fiducials) == 0 || len(observed) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, f := range fiducials {
		d := nearestDistance(t.Apply(f), observed)
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(fiducials)))
}

package register

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinObservations is the smallest observed (and fiducial) point count that can
// constrain rotation and scale. Below this the problem is degenerate.
const MinObservations = 2

// FilterConfig holds the tunable parameters of one registration call. The
// zero value is not usable; start from DefaultFilterConfig.
type FilterConfig struct {
	// ParticleCount is the population size.
	ParticleCount int

	// MaxIterations caps the weight/resample/perturb cycles and acts as the
	// implicit timeout of the search.
	MaxIterations int

	// MeasurementStd is the standard deviation in pixels of the residual
	// model used to score hypotheses. Zero derives it from the prior
	// positional std.
	MeasurementStd float64

	// ConvergenceTol stops the loop once the weighted std of every parameter
	// falls below this fraction of its prior std.
	ConvergenceTol float64

	// JitterFraction and JitterDecay shape the perturbation applied after
	// each resample: sigma = JitterFraction * priorStd * JitterDecay^iter.
	JitterFraction float64
	JitterDecay    float64

	// Seed fixes the random stream. The same seed with identical inputs
	// reproduces the run exactly.
	Seed uint64
}

// DefaultFilterConfig returns the stock filter parameters.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		ParticleCount:  1000,
		MaxIterations:  60,
		MeasurementStd: 0,
		ConvergenceTol: 0.02,
		JitterFraction: 0.25,
		JitterDecay:    0.85,
	}
}

// Validate reports whether the configuration can drive a registration.
func (c FilterConfig) Validate() error {
	if c.ParticleCount < 10 {
		return fmt.Errorf("particle count must be at least 10, got %d", c.ParticleCount)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.MeasurementStd < 0 {
		return fmt.Errorf("measurement std must not be negative, got %g", c.MeasurementStd)
	}
	if c.ConvergenceTol <= 0 {
		return fmt.Errorf("convergence tolerance must be positive, got %g", c.ConvergenceTol)
	}
	if c.JitterFraction < 0 {
		return fmt.Errorf("jitter fraction must not be negative, got %g", c.JitterFraction)
	}
	if c.JitterDecay <= 0 || c.JitterDecay > 1 {
		return fmt.Errorf("jitter decay must be in (0,1], got %g", c.JitterDecay)
	}
	return nil
}

// Result is the outcome of one registration.
type Result struct {
	// Transform maps reference grid coordinates to image coordinates.
	Transform Transform

	// Iterations is the number of weighting passes performed.
	Iterations int

	// Converged is true when the population spread fell below the
	// convergence tolerance before the iteration cap.
	Converged bool

	// RMSE is the root mean square nearest-neighbour residual of the
	// fiducials under the final transform, in pixels.
	RMSE float64

	// Quality buckets RMSE for reporting.
	Quality Quality
}

// Register estimates the similarity transform that best maps the fiducial
// points onto the observed spot coordinates.
//
// The engine owns its particle population for the duration of the call and
// shares nothing between calls, so registrations of different images may run
// concurrently. ctx is checked once per iteration; cancellation is reported
// as the context's error.
func Register(ctx context.Context, fiducials, observed PointSet, prior Prior, cfg FilterConfig) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("filter config: %w", err)
	}
	if err := prior.Validate(); err != nil {
		return Result{}, fmt.Errorf("prior: %w", err)
	}
	if len(fiducials) < MinObservations {
		return Result{}, fmt.Errorf("%d fiducial points: %w", len(fiducials), ErrInsufficientObservations)
	}
	if len(observed) < MinObservations {
		return Result{}, fmt.Errorf("%d observed points: %w", len(observed), ErrInsufficientObservations)
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed)
	rng := rand.New(src)
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	sigma := cfg.MeasurementStd
	if sigma <= 0 {
		sigma = prior.Stds.X
	}
	residual := distuv.Normal{Mu: 0, Sigma: sigma}

	particles := NewGaussianParticles(cfg.ParticleCount, prior, src)
	buf := newParamBuffers(cfg.ParticleCount)

	converged := false
	iters := 0
	for i := 0; i < cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("registration cancelled after %d iterations: %w", i, err)
		}
		if err := weighParticles(particles, fiducials, observed, prior.Mean, residual); err != nil {
			return Result{}, fmt.Errorf("weighting pass %d: %w", i+1, err)
		}
		iters = i + 1

		buf.fill(particles)
		if buf.spreadBelow(prior.Stds, cfg.ConvergenceTol) {
			converged = true
			break
		}
		if i == cfg.MaxIterations-1 {
			// Stop here so the estimate comes from a freshly weighted
			// population rather than a perturbed one.
			break
		}

		particles = systematicResample(particles, rng.Float64())
		jitter := cfg.JitterFraction * math.Pow(cfg.JitterDecay, float64(i))
		perturbParticles(particles, prior.Stds, jitter, unit)
	}

	tx, ty, theta, scale := buf.weightedMean()
	t := Similarity(prior.Mean, tx, ty, theta, scale)
	rmse := fiducialRMSE(t, fiducials, observed)

	return Result{
		Transform:  t,
		Iterations: iters,
		Converged:  converged,
		RMSE:       rmse,
		Quality:    QualityForRMSE(rmse),
	}, nil
}

// weighParticles scores every particle against the observations and
// normalizes the weights to sum 1. It fails with ErrRegistrationDivergence
// when the whole population underflows to zero.
func weighParticles(particles []Particle, fiducials, observed PointSet, centre Point, residual distuv.Normal) error {
	var sum float64
	for i := range particles {
		w := transformWeight(particles[i].Transform(centre), fiducials, observed, residual)
		particles[i].Weight = w
		sum += w
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return ErrRegistrationDivergence
	}
	for i := range particles {
		particles[i].Weight /= sum
	}
	return nil
}

// systematicResample redraws the population with replacement proportional to
// weight using a single uniform offset, so high-weight particles appear
// multiple times and low-weight particles vanish. Weights reset to uniform.
func systematicResample(particles []Particle, offset float64) []Particle {
	n := len(particles)
	out := make([]Particle, n)
	w := 1 / float64(n)
	j := 0
	cum := particles[0].Weight
	for i := 0; i < n; i++ {
		target := (offset + float64(i)) / float64(n)
		for cum < target && j < n-1 {
			j++
			cum += particles[j].Weight
		}
		out[i] = particles[j]
		out[i].Weight = w
	}
	return out
}

// perturbParticles adds Gaussian jitter scaled per parameter to keep the
// resampled population diverse. scale multiplies the prior stds.
func perturbParticles(particles []Particle, stds NoiseStds, scale float64, unit distuv.Normal) {
	for i := range particles {
		particles[i].TX += unit.Rand() * stds.X * scale
		particles[i].TY += unit.Rand() * stds.Y * scale
		particles[i].Theta += unit.Rand() * stds.Angle * scale
		particles[i].Scale += unit.Rand() * stds.Scale * scale
	}
}

// paramBuffers holds the population's parameters as columns for the weighted
// moment calculations. Allocated once per call and refilled each iteration.
type paramBuffers struct {
	tx      []float64
	ty      []float64
	theta   []float64
	scale   []float64
	weights []float64
}

func newParamBuffers(n int) *paramBuffers {
	return &paramBuffers{
		tx:      make([]float64, n),
		ty:      make([]float64, n),
		theta:   make([]float64, n),
		scale:   make([]float64, n),
		weights: make([]float64, n),
	}
}

func (b *paramBuffers) fill(particles []Particle) {
	for i, p := range particles {
		b.tx[i] = p.TX
		b.ty[i] = p.TY
		b.theta[i] = p.Theta
		b.scale[i] = p.Scale
		b.weights[i] = p.Weight
	}
}

// spreadBelow reports whether the weighted std of every parameter has fallen
// below tol times its prior std.
func (b *paramBuffers) spreadBelow(stds NoiseStds, tol float64) bool {
	return stat.StdDev(b.tx, b.weights) < tol*stds.X &&
		stat.StdDev(b.ty, b.weights) < tol*stds.Y &&
		stat.StdDev(b.theta, b.weights) < tol*stds.Angle &&
		stat.StdDev(b.scale, b.weights) < tol*stds.Scale
}

// weightedMean extracts the population's weighted mean parameters. The mean is
// preferred over the single best particle because it averages out residual
// sampling noise.
func (b *paramBuffers) weightedMean() (tx, ty, theta, scale float64) {
	return stat.Mean(b.tx, b.weights),
		stat.Mean(b.ty, b.weights),
		stat.Mean(b.theta, b.weights),
		stat.Mean(b.scale, b.weights)
}

package register

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Particle is one similarity-transform hypothesis. (TX, TY) is the image
// position the grid centre maps to; Theta and Scale act about the grid
// centre. Weight is the particle's share of the population's probability
// mass, in [0,1], summing to 1 across the population after every weighting
// pass.
type Particle struct {
	TX     float64
	TY     float64
	Theta  float64
	Scale  float64
	Weight float64
}

// Transform builds the 2x3 similarity matrix this particle hypothesizes,
// with rotation and scale acting about centre.
func (p Particle) Transform(centre Point) Transform {
	return Similarity(centre, p.TX, p.TY, p.Theta, p.Scale)
}

// NoiseStds holds the per-parameter standard deviations of the prior. The
// default profile assumes camera framing varies far more than lens geometry,
// so position is loose while angle and scale are nearly pinned.
type NoiseStds struct {
	X     float64
	Y     float64
	Angle float64
	Scale float64
}

// DefaultNoiseStds returns the stock prior widths in pixels, radians and
// scale fraction.
func DefaultNoiseStds() NoiseStds {
	return NoiseStds{X: 100, Y: 100, Angle: 0.1, Scale: 0.001}
}

// Validate reports whether every axis has a usable positive width.
func (s NoiseStds) Validate() error {
	if s.X <= 0 || s.Y <= 0 || s.Angle <= 0 || s.Scale <= 0 {
		return fmt.Errorf("noise stds must all be positive, got x=%g y=%g angle=%g scale=%g",
			s.X, s.Y, s.Angle, s.Scale)
	}
	return nil
}

// Prior is the 4-D Gaussian the initial population is drawn from. Mean is the
// expected image position of the grid centre, normally the centroid of the
// detected spots.
type Prior struct {
	Mean      Point
	AngleMean float64
	ScaleMean float64
	Stds      NoiseStds
}

// DefaultPrior centres the prior on mean with no expected rotation, unit
// scale and the stock noise widths.
func DefaultPrior(mean Point) Prior {
	return Prior{Mean: mean, AngleMean: 0, ScaleMean: 1, Stds: DefaultNoiseStds()}
}

// Validate reports whether the prior can be sampled from.
func (p Prior) Validate() error {
	if p.ScaleMean <= 0 {
		return fmt.Errorf("prior scale mean must be positive, got %g", p.ScaleMean)
	}
	return p.Stds.Validate()
}

// NewGaussianParticles draws count independent hypotheses from the prior.
// Every parameter is sampled from its own normal distribution and all weights
// start uniform at 1/count. Draw order is fixed so a given source yields a
// reproducible population.
func NewGaussianParticles(count int, prior Prior, src rand.Source) []Particle {
	tx := distuv.Normal{Mu: prior.Mean.X, Sigma: prior.Stds.X, Src: src}
	ty := distuv.Normal{Mu: prior.Mean.Y, Sigma: prior.Stds.Y, Src: src}
	theta := distuv.Normal{Mu: prior.AngleMean, Sigma: prior.Stds.Angle, Src: src}
	scale := distuv.Normal{Mu: prior.ScaleMean, Sigma: prior.Stds.Scale, Src: src}

	particles := make([]Particle, count)
	w := 1 / float64(count)
	for i := range particles {
		particles[i] = Particle{
			TX:     tx.Rand(),
			TY:     ty.Rand(),
			Theta:  theta.Rand(),
			Scale:  scale.Rand(),
			Weight: w,
		}
	}
	return particles
}

// Package register aligns an idealized rectangular grid of assay spots to the
// spot centres detected in a photographed well.
//
// The estimator is a particle filter over 2-D similarity transforms
// (translation, rotation about the grid centre, uniform scale). A population of
// transform hypotheses is drawn from a Gaussian prior, weighted by how well the
// transformed fiducial points explain the observed spot coordinates, then
// resampled and perturbed until the population concentrates on a single
// estimate. The recovered transform is applied to the full reference grid to
// produce registered coordinates for downstream measurement.
//
// The package does no I/O and keeps no state between calls. One call to
// Register consumes one fiducial set and one observed set and returns one
// transform.
package register

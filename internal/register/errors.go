package register

import "errors"

// Registration failure conditions. All are returned wrapped with call context
// and match with errors.Is. None of them is recoverable inside the estimator;
// the caller decides whether to skip the image or retry with a different seed
// or a wider prior.
var (
	// ErrInsufficientObservations means the observed spot set (or the fiducial
	// set) is too small to constrain rotation and scale.
	ErrInsufficientObservations = errors.New("insufficient observations to constrain transform")

	// ErrRegistrationDivergence means every particle weight underflowed to
	// zero during a weighting pass, so no hypothesis explains the
	// observations.
	ErrRegistrationDivergence = errors.New("registration diverged: all particle weights collapsed to zero")

	// ErrInvalidTransform means a non-finite or degenerate matrix reached the
	// transform applier.
	ErrInvalidTransform = errors.New("invalid transform matrix")
)

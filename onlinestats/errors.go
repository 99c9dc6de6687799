package onlinestats

import (
	"errors"
	"math"
)

var (
	// ErrInvalidParameter is returned when an accumulator is configured with
	// an out-of-range parameter, such as a quantile probability outside (0,1).
	ErrInvalidParameter = errors.New("onlinestats: invalid parameter")

	// ErrInsufficientSamples is returned when an operation needs at least one
	// observation or accumulator and got none.
	ErrInsufficientSamples = errors.New("onlinestats: insufficient samples")

	// ErrNonFiniteSample is returned by Push for NaN and infinite values.
	ErrNonFiniteSample = errors.New("onlinestats: non-finite sample")

	// ErrIncompatibleMerge is returned when two accumulators were configured
	// differently and cannot be combined.
	ErrIncompatibleMerge = errors.New("onlinestats: incompatible merge")
)

func checkFinite(x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return ErrNonFiniteSample
	}
	return nil
}

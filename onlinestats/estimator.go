package onlinestats

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// Estimator consumes samples one at a time.
type Estimator interface {
	Push(x float64) error
	Len() uint64
}

// Merger is implemented by accumulators that can absorb another accumulator
// of the same type.
type Merger[T any] interface {
	Merge(other T) error
}

// Number is any value PushAll can convert to a float64 sample.
type Number interface {
	constraints.Integer | constraints.Float
}

// PushAll offers every value to e. Non-finite samples do not stop the loop;
// if any were rejected the returned error wraps ErrNonFiniteSample and
// reports how many. Any other error from Push is returned immediately.
func PushAll[T Number](e Estimator, xs ...T) error {
	rejected := 0
	for _, x := range xs {
		if err := e.Push(float64(x)); err != nil {
			if !errors.Is(err, ErrNonFiniteSample) {
				return err
			}
			rejected++
		}
	}
	if rejected > 0 {
		return fmt.Errorf("%w: rejected %d of %d samples", ErrNonFiniteSample, rejected, len(xs))
	}
	return nil
}

// Reduce merges parts pairwise in a balanced tree and returns the
// accumulator holding the aggregate, which is parts[0]. The elements of parts
// are modified in place.
func Reduce[A Merger[A]](parts []A) (A, error) {
	if len(parts) == 0 {
		var zero A
		return zero, ErrInsufficientSamples
	}
	for stride := 1; stride < len(parts); stride *= 2 {
		for i := 0; i+stride < len(parts); i += 2 * stride {
			if err := parts[i].Merge(parts[i+stride]); err != nil {
				return parts[0], fmt.Errorf("merge part %d into %d: %w", i+stride, i, err)
			}
		}
	}
	return parts[0], nil
}

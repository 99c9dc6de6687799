package onlinestats

import (
	"fmt"
	"math"
	"sort"
)

const markers = 5

// Quantile estimates a single quantile of a stream with the P² algorithm of
// Jain and Chlamtac. Five markers follow the minimum, p/2, p, (1+p)/2 and the
// maximum of the data; after every sample the three interior markers are
// nudged towards their desired positions with a piecewise-parabolic
// prediction, falling back to linear interpolation when the parabola would
// break the ordering of the marker heights.
//
// The zero value is unconfigured; use NewQuantile.
type Quantile struct {
	p    float64
	n    uint64
	q    [markers]float64 // marker heights, sorted samples while n < 5
	pos  [markers]float64 // actual marker positions, 1-based
	want [markers]float64 // desired marker positions
}

// NewQuantile returns an estimator for the p-quantile, 0 < p < 1.
func NewQuantile(p float64) (*Quantile, error) {
	if !(p > 0 && p < 1) {
		return nil, fmt.Errorf("%w: quantile probability %v is outside (0, 1)", ErrInvalidParameter, p)
	}
	return &Quantile{p: p}, nil
}

// P returns the target probability.
func (e *Quantile) P() float64 {
	return e.p
}

// Len returns the number of samples.
func (e *Quantile) Len() uint64 {
	return e.n
}

// Reset discards all observed samples and keeps the target probability.
func (e *Quantile) Reset() {
	*e = Quantile{p: e.p}
}

func (e *Quantile) increments() [markers]float64 {
	return [markers]float64{0, e.p / 2, e.p, (1 + e.p) / 2, 1}
}

// desired positions after n samples.
func (e *Quantile) desired(n float64) [markers]float64 {
	var d [markers]float64
	for i, inc := range e.increments() {
		d[i] = 1 + inc*(n-1)
	}
	return d
}

// Push adds a sample.
func (e *Quantile) Push(x float64) error {
	if e.p == 0 {
		return fmt.Errorf("%w: quantile estimator is not configured", ErrInvalidParameter)
	}
	if err := checkFinite(x); err != nil {
		return err
	}

	if e.n < markers {
		i := int(e.n)
		for i > 0 && e.q[i-1] > x {
			e.q[i] = e.q[i-1]
			i--
		}
		e.q[i] = x
		e.n++
		if e.n == markers {
			for i := range e.pos {
				e.pos[i] = float64(i + 1)
			}
			e.want = e.desired(markers)
		}
		return nil
	}

	var k int
	switch {
	case x < e.q[0]:
		e.q[0] = x
	case x >= e.q[4]:
		e.q[4] = x
		k = 3
	default:
		for x >= e.q[k+1] {
			k++
		}
	}
	for i := k + 1; i < markers; i++ {
		e.pos[i]++
	}
	for i, inc := range e.increments() {
		e.want[i] += inc
	}
	e.n++

	for i := 1; i < markers-1; i++ {
		e.adjust(i)
	}
	return nil
}

func (e *Quantile) adjust(i int) {
	d := e.want[i] - e.pos[i]
	if !(d >= 1 && e.pos[i+1]-e.pos[i] > 1) && !(d <= -1 && e.pos[i-1]-e.pos[i] < -1) {
		return
	}
	s := math.Copysign(1, d)
	if h := e.parabolic(i, s); e.q[i-1] < h && h < e.q[i+1] {
		e.q[i] = h
	} else {
		e.q[i] = e.linear(i, s)
	}
	e.pos[i] += s
}

func (e *Quantile) parabolic(i int, s float64) float64 {
	q, n := &e.q, &e.pos
	left := (n[i] - n[i-1] + s) * (q[i+1] - q[i]) / (n[i+1] - n[i])
	right := (n[i+1] - n[i] - s) * (q[i] - q[i-1]) / (n[i] - n[i-1])
	return q[i] + s/(n[i+1]-n[i-1])*(left+right)
}

func (e *Quantile) linear(i int, s float64) float64 {
	j := i + int(s)
	return e.q[i] + s*(e.q[j]-e.q[i])/(e.pos[j]-e.pos[i])
}

// Quantile returns the current estimate of the p-quantile. With fewer than
// five samples it interpolates linearly between the sorted samples. It is
// NaN if no sample has been observed.
func (e *Quantile) Quantile() float64 {
	switch {
	case e.n == 0:
		return math.NaN()
	case e.n < markers:
		rank := e.p * float64(e.n-1)
		lo := math.Floor(rank)
		hi := math.Ceil(rank)
		return e.q[int(lo)] + (e.q[int(hi)]-e.q[int(lo)])*(rank-lo)
	default:
		return e.q[2]
	}
}

// Min returns the smallest sample, or +Inf if there is none.
func (e *Quantile) Min() float64 {
	if e.n == 0 {
		return math.Inf(1)
	}
	return e.q[0]
}

// Max returns the largest sample, or -Inf if there is none.
func (e *Quantile) Max() float64 {
	switch {
	case e.n == 0:
		return math.Inf(-1)
	case e.n < markers:
		return e.q[e.n-1]
	default:
		return e.q[4]
	}
}

// Merge folds o into e. Both estimators must target the same probability.
//
// The result is approximate: marker state cannot be combined losslessly.
// An operand with fewer than five samples still holds them verbatim and is
// replayed exactly. Otherwise each side's markers are read as a piecewise
// linear rank function, the two are added into an estimate of the combined
// rank function, and fresh markers are placed at the desired positions for
// the combined count.
func (e *Quantile) Merge(o *Quantile) error {
	if e.p == 0 || o.p == 0 {
		return fmt.Errorf("%w: quantile estimator is not configured", ErrInvalidParameter)
	}
	if e.p != o.p {
		return fmt.Errorf("%w: quantile %v with quantile %v", ErrIncompatibleMerge, e.p, o.p)
	}
	if o.n == 0 {
		return nil
	}
	if o.n < markers {
		return e.replay(o.q, o.n)
	}
	if e.n < markers {
		samples, n := e.q, e.n
		*e = *o
		return e.replay(samples, n)
	}

	a, b := *e, *o
	n := float64(a.n + b.n)
	rank := func(x float64) float64 { return a.rank(x) + b.rank(x) }

	xs := make([]float64, 0, 2*markers)
	xs = append(xs, a.q[:]...)
	xs = append(xs, b.q[:]...)
	sort.Float64s(xs)

	want := e.desired(n)
	e.pos[0], e.pos[4] = 1, n
	for i := 1; i < markers-1; i++ {
		e.pos[i] = math.Max(math.Round(want[i]), e.pos[i-1]+1)
	}
	for i := markers - 2; i > 0; i-- {
		e.pos[i] = math.Min(e.pos[i], e.pos[i+1]-1)
	}

	e.q[0], e.q[4] = xs[0], xs[len(xs)-1]
	for i := 1; i < markers-1; i++ {
		e.q[i] = invertRank(xs, rank, e.pos[i])
	}
	e.n = a.n + b.n
	e.want = want
	return nil
}

// rank estimates how many samples are at most x, reading the markers as
// points of a piecewise linear rank function. It needs n >= 5.
func (e *Quantile) rank(x float64) float64 {
	switch {
	case x < e.q[0]:
		return 0
	case x >= e.q[4]:
		return e.pos[4]
	}
	k := 0
	for x >= e.q[k+1] {
		k++
	}
	return e.pos[k] + (e.pos[k+1]-e.pos[k])*(x-e.q[k])/(e.q[k+1]-e.q[k])
}

// invertRank returns the height at which rank reaches target, interpolating
// linearly between the sorted breakpoints xs.
func invertRank(xs []float64, rank func(float64) float64, target float64) float64 {
	lo := math.Inf(-1)
	for j, x := range xs {
		hi := rank(x)
		if hi < target {
			lo = hi
			continue
		}
		if j == 0 {
			return x
		}
		return xs[j-1] + (x-xs[j-1])*(target-lo)/(hi-lo)
	}
	return xs[len(xs)-1]
}

func (e *Quantile) replay(samples [markers]float64, n uint64) error {
	for _, x := range samples[:n] {
		if err := e.Push(x); err != nil {
			return err
		}
	}
	return nil
}

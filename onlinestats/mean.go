package onlinestats

import "math"

// Mean is a running arithmetic mean.
//
// It uses Welford's update instead of dividing a running sum, which keeps the
// result accurate when the sum grows much larger than individual samples.
type Mean struct {
	n   uint64
	avg float64
}

// Push adds a sample.
func (m *Mean) Push(x float64) error {
	if err := checkFinite(x); err != nil {
		return err
	}
	m.n++
	m.avg += (x - m.avg) / float64(m.n)
	return nil
}

// Mean returns the mean of the samples seen so far, or NaN if there are none.
func (m *Mean) Mean() float64 {
	if m.n == 0 {
		return math.NaN()
	}
	return m.avg
}

// Len returns the number of samples.
func (m *Mean) Len() uint64 {
	return m.n
}

// IsEmpty reports whether no sample has been observed.
func (m *Mean) IsEmpty() bool {
	return m.n == 0
}

// Reset discards all observed samples.
func (m *Mean) Reset() {
	*m = Mean{}
}

// Merge folds the samples summarized by o into m. It never fails.
func (m *Mean) Merge(o *Mean) error {
	if o.n == 0 {
		return nil
	}
	if m.n == 0 {
		*m = *o
		return nil
	}
	n := m.n + o.n
	m.avg += (o.avg - m.avg) * (float64(o.n) / float64(n))
	m.n = n
	return nil
}

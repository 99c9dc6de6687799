package onlinestats

import "math"

// MinMax tracks the smallest and largest sample of a stream.
type MinMax struct {
	n        uint64
	min, max float64
}

// Push adds a sample.
func (m *MinMax) Push(x float64) error {
	if err := checkFinite(x); err != nil {
		return err
	}
	if m.n == 0 {
		m.min, m.max = x, x
	} else if x < m.min {
		m.min = x
	} else if x > m.max {
		m.max = x
	}
	m.n++
	return nil
}

// Min returns the smallest sample, or +Inf if there is none.
func (m *MinMax) Min() float64 {
	if m.n == 0 {
		return math.Inf(1)
	}
	return m.min
}

// Max returns the largest sample, or -Inf if there is none.
func (m *MinMax) Max() float64 {
	if m.n == 0 {
		return math.Inf(-1)
	}
	return m.max
}

// Len returns the number of samples.
func (m *MinMax) Len() uint64 {
	return m.n
}

// Reset discards all observed samples.
func (m *MinMax) Reset() {
	*m = MinMax{}
}

// Merge folds the bounds of o into m. It is exact and never fails.
func (m *MinMax) Merge(o *MinMax) error {
	if o.n == 0 {
		return nil
	}
	if m.n == 0 {
		*m = *o
		return nil
	}
	m.min = math.Min(m.min, o.min)
	m.max = math.Max(m.max, o.max)
	m.n += o.n
	return nil
}

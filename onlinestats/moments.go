package onlinestats

import "math"

// Moments tracks the mean and the second to fourth central moments of a
// stream, from which variance, skewness and kurtosis are derived.
//
// m2, m3 and m4 are running sums of (x - mean)^k, not yet divided by the
// sample count.
type Moments struct {
	avg        Mean
	m2, m3, m4 float64
}

// Push adds a sample.
func (m *Moments) Push(x float64) error {
	if err := checkFinite(x); err != nil {
		return err
	}
	n := float64(m.avg.n + 1)
	delta := x - m.avg.avg
	deltaN := delta / n
	deltaN2 := deltaN * deltaN
	term1 := delta * deltaN * (n - 1)

	// m4 and m3 depend on the previous m2 and m3, so the order matters.
	m.m4 += term1*deltaN2*(n*n-3*n+3) + 6*deltaN2*m.m2 - 4*deltaN*m.m3
	m.m3 += term1*deltaN*(n-2) - 3*deltaN*m.m2
	m.m2 += term1

	m.avg.n++
	m.avg.avg += deltaN
	return nil
}

// Len returns the number of samples.
func (m *Moments) Len() uint64 {
	return m.avg.n
}

// IsEmpty reports whether no sample has been observed.
func (m *Moments) IsEmpty() bool {
	return m.avg.n == 0
}

// Reset discards all observed samples.
func (m *Moments) Reset() {
	*m = Moments{}
}

// Mean returns the mean, or NaN if no sample has been observed.
func (m *Moments) Mean() float64 {
	return m.avg.Mean()
}

// Variance returns the unbiased sample variance M2/(n-1). It is NaN for
// fewer than two samples.
func (m *Moments) Variance() float64 {
	if m.avg.n < 2 {
		return math.NaN()
	}
	return m.m2 / float64(m.avg.n-1)
}

// PopulationVariance returns M2/n, treating the stream as the whole
// population. It is NaN if no sample has been observed.
func (m *Moments) PopulationVariance() float64 {
	if m.avg.n == 0 {
		return math.NaN()
	}
	return m.m2 / float64(m.avg.n)
}

// StdDev returns the square root of Variance.
func (m *Moments) StdDev() float64 {
	return math.Sqrt(m.Variance())
}

// StandardError estimates the standard error of the mean.
func (m *Moments) StandardError() float64 {
	return math.Sqrt(m.Variance() / float64(m.avg.n))
}

// Skewness returns the population-normalized skewness sqrt(n)*M3/M2^1.5.
// It is NaN when the stream is empty or constant.
func (m *Moments) Skewness() float64 {
	if m.avg.n == 0 || m.m2 == 0 {
		return math.NaN()
	}
	return math.Sqrt(float64(m.avg.n)) * m.m3 / math.Pow(m.m2, 1.5)
}

// Kurtosis returns the excess kurtosis n*M4/M2^2 - 3, which is 0 for a
// normal distribution. It is NaN when the stream is empty or constant.
func (m *Moments) Kurtosis() float64 {
	if m.avg.n == 0 || m.m2 == 0 {
		return math.NaN()
	}
	return float64(m.avg.n)*m.m4/(m.m2*m.m2) - 3
}

// Merge folds the samples summarized by o into m using the pairwise update
// of Chan et al. as generalized by Pébay. It never fails.
func (m *Moments) Merge(o *Moments) error {
	if o.avg.n == 0 {
		return nil
	}
	if m.avg.n == 0 {
		*m = *o
		return nil
	}

	na, nb := float64(m.avg.n), float64(o.avg.n)
	n := na + nb
	delta := o.avg.avg - m.avg.avg
	delta2 := delta * delta
	nanb := na * nb

	m2 := m.m2 + o.m2 + delta2*nanb/n
	m3 := m.m3 + o.m3 +
		delta2*delta*nanb*(na-nb)/(n*n) +
		3*delta*(na*o.m2-nb*m.m2)/n
	m4 := m.m4 + o.m4 +
		delta2*delta2*nanb*(na*na-nanb+nb*nb)/(n*n*n) +
		6*delta2*(na*na*o.m2+nb*nb*m.m2)/(n*n) +
		4*delta*(na*o.m3-nb*m.m3)/n

	m.m2, m.m3, m.m4 = m2, m3, m4
	return m.avg.Merge(&o.avg)
}

package main

import (
	"encoding/json"
	"errors"
	"math"

	"go.uber.org/multierr"

	"streamstats_worker/onlinestats"
)

// Stats is the result row written for a test run. Fields that need more
// samples than were observed are NaN. StdDev is the population standard
// deviation, Variance the unbiased sample variance.
type Stats struct {
	Count    uint64
	Rejected uint64
	Min      float64
	Max      float64
	Mean     float64
	Median   float64
	Q1       float64
	Q3       float64
	StdDev   float64
	Variance float64
	Skewness float64
	Kurtosis float64
}

// summary observes one sample stream with every accumulator the result row
// needs. Non-finite samples are skipped and counted.
type summary struct {
	moments  onlinestats.Moments
	extrema  onlinestats.MinMax
	q1       *onlinestats.Quantile
	median   *onlinestats.Quantile
	q3       *onlinestats.Quantile
	rejected uint64
}

func newSummary(quantiles []float64) (*summary, error) {
	if len(quantiles) != 3 {
		return nil, errors.New("summary needs exactly three quantiles")
	}
	var s summary
	var err error
	for i, q := range []**onlinestats.Quantile{&s.q1, &s.median, &s.q3} {
		if *q, err = onlinestats.NewQuantile(quantiles[i]); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func (s *summary) Push(x float64) error {
	if err := s.moments.Push(x); err != nil {
		if errors.Is(err, onlinestats.ErrNonFiniteSample) {
			s.rejected++
			return nil
		}
		return err
	}
	return multierr.Combine(
		s.extrema.Push(x),
		s.q1.Push(x),
		s.median.Push(x),
		s.q3.Push(x),
	)
}

func (s *summary) Len() uint64 {
	return s.moments.Len()
}

func (s *summary) Merge(o *summary) error {
	s.rejected += o.rejected
	return multierr.Combine(
		s.moments.Merge(&o.moments),
		s.extrema.Merge(&o.extrema),
		s.q1.Merge(o.q1),
		s.median.Merge(o.median),
		s.q3.Merge(o.q3),
	)
}

func (s *summary) Stats() Stats {
	st := Stats{
		Count:    s.moments.Len(),
		Rejected: s.rejected,
		Min:      s.extrema.Min(),
		Max:      s.extrema.Max(),
		Mean:     s.moments.Mean(),
		Median:   s.median.Quantile(),
		Q1:       s.q1.Quantile(),
		Q3:       s.q3.Quantile(),
		StdDev:   math.Sqrt(s.moments.PopulationVariance()),
		Variance: s.moments.Variance(),
		Skewness: s.moments.Skewness(),
		Kurtosis: s.moments.Kurtosis(),
	}
	if st.Count == 0 {
		st.Min, st.Max = math.NaN(), math.NaN()
	}
	return st
}

type summaryState struct {
	Moments  *onlinestats.Moments  `json:"moments"`
	Extrema  *onlinestats.MinMax   `json:"extrema"`
	Q1       *onlinestats.Quantile `json:"q1"`
	Median   *onlinestats.Quantile `json:"median"`
	Q3       *onlinestats.Quantile `json:"q3"`
	Rejected uint64                `json:"rejected"`
}

func (s *summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryState{
		Moments:  &s.moments,
		Extrema:  &s.extrema,
		Q1:       s.q1,
		Median:   s.median,
		Q3:       s.q3,
		Rejected: s.rejected,
	})
}

func (s *summary) UnmarshalJSON(data []byte) error {
	st := summaryState{
		Moments: &onlinestats.Moments{},
		Extrema: &onlinestats.MinMax{},
		Q1:      &onlinestats.Quantile{},
		Median:  &onlinestats.Quantile{},
		Q3:      &onlinestats.Quantile{},
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	*s = summary{
		moments:  *st.Moments,
		extrema:  *st.Extrema,
		q1:       st.Q1,
		median:   st.Median,
		q3:       st.Q3,
		rejected: st.Rejected,
	}
	return nil
}

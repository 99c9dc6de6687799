package onlinestats

import (
	"encoding/json"
	"fmt"
)

// The JSON forms below are flat records of the accumulator fields so a
// partial result can be checkpointed and restored bit for bit.

type meanState struct {
	N    uint64  `json:"n"`
	Mean float64 `json:"mean"`
}

// MarshalJSON implements json.Marshaler.
func (m *Mean) MarshalJSON() ([]byte, error) {
	return json.Marshal(meanState{N: m.n, Mean: m.avg})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Mean) UnmarshalJSON(data []byte) error {
	var st meanState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if err := checkFinite(st.Mean); err != nil {
		return fmt.Errorf("%w: mean state: %v", ErrInvalidParameter, err)
	}
	if st.N == 0 && st.Mean != 0 {
		return fmt.Errorf("%w: mean state: mean %v without samples", ErrInvalidParameter, st.Mean)
	}
	*m = Mean{n: st.N, avg: st.Mean}
	return nil
}

type momentsState struct {
	N    uint64  `json:"n"`
	Mean float64 `json:"mean"`
	M2   float64 `json:"m2"`
	M3   float64 `json:"m3"`
	M4   float64 `json:"m4"`
}

// MarshalJSON implements json.Marshaler.
func (m *Moments) MarshalJSON() ([]byte, error) {
	return json.Marshal(momentsState{N: m.avg.n, Mean: m.avg.avg, M2: m.m2, M3: m.m3, M4: m.m4})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Moments) UnmarshalJSON(data []byte) error {
	var st momentsState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	for _, v := range []float64{st.Mean, st.M2, st.M3, st.M4} {
		if err := checkFinite(v); err != nil {
			return fmt.Errorf("%w: moments state: %v", ErrInvalidParameter, err)
		}
	}
	if st.M2 < 0 {
		return fmt.Errorf("%w: moments state: negative m2 %v", ErrInvalidParameter, st.M2)
	}
	if st.N == 0 && st.Mean != 0 {
		return fmt.Errorf("%w: moments state: mean %v without samples", ErrInvalidParameter, st.Mean)
	}
	if st.N <= 1 && (st.M2 != 0 || st.M3 != 0 || st.M4 != 0) {
		return fmt.Errorf("%w: moments state: central moments set with %d samples", ErrInvalidParameter, st.N)
	}
	*m = Moments{avg: Mean{n: st.N, avg: st.Mean}, m2: st.M2, m3: st.M3, m4: st.M4}
	return nil
}

type minMaxState struct {
	N   uint64  `json:"n"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MarshalJSON implements json.Marshaler.
func (m *MinMax) MarshalJSON() ([]byte, error) {
	return json.Marshal(minMaxState{N: m.n, Min: m.min, Max: m.max})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *MinMax) UnmarshalJSON(data []byte) error {
	var st minMaxState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.N > 0 && !(st.Min <= st.Max) {
		return fmt.Errorf("%w: minmax state: min %v above max %v", ErrInvalidParameter, st.Min, st.Max)
	}
	*m = MinMax{n: st.N, min: st.Min, max: st.Max}
	return nil
}

type quantileState struct {
	P         float64   `json:"p"`
	N         uint64    `json:"n"`
	Heights   []float64 `json:"heights"`
	Positions []float64 `json:"positions,omitempty"`
	Desired   []float64 `json:"desired,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Quantile) MarshalJSON() ([]byte, error) {
	st := quantileState{P: e.p, N: e.n}
	if e.n < markers {
		st.Heights = append([]float64{}, e.q[:e.n]...)
	} else {
		st.Heights = append([]float64{}, e.q[:]...)
		st.Positions = append([]float64{}, e.pos[:]...)
		st.Desired = append([]float64{}, e.want[:]...)
	}
	return json.Marshal(st)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Quantile) UnmarshalJSON(data []byte) error {
	var st quantileState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	out, err := NewQuantile(st.P)
	if err != nil {
		return err
	}
	out.n = st.N

	size := int(min(st.N, markers))
	if len(st.Heights) != size {
		return fmt.Errorf("%w: quantile state: %d heights for %d samples", ErrInvalidParameter, len(st.Heights), st.N)
	}
	for i, h := range st.Heights {
		if err := checkFinite(h); err != nil {
			return fmt.Errorf("%w: quantile state: %v", ErrInvalidParameter, err)
		}
		if i > 0 && h < st.Heights[i-1] {
			return fmt.Errorf("%w: quantile state: heights are not sorted", ErrInvalidParameter)
		}
		out.q[i] = h
	}

	if st.N >= markers {
		if len(st.Positions) != markers || len(st.Desired) != markers {
			return fmt.Errorf("%w: quantile state: want %d positions, got %d/%d",
				ErrInvalidParameter, markers, len(st.Positions), len(st.Desired))
		}
		for i, p := range st.Positions {
			if i > 0 && !(p > st.Positions[i-1]) {
				return fmt.Errorf("%w: quantile state: positions are not increasing", ErrInvalidParameter)
			}
			out.pos[i] = p
		}
		if st.Positions[0] != 1 || st.Positions[markers-1] != float64(st.N) {
			return fmt.Errorf("%w: quantile state: positions do not span 1..%d", ErrInvalidParameter, st.N)
		}
		copy(out.want[:], st.Desired)
	}

	*e = *out
	return nil
}

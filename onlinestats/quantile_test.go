package onlinestats

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/aclements/go-moremath/stats"
	"github.com/bmizerany/perks/quantile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuantile(t *testing.T, p float64, xs ...float64) *Quantile {
	t.Helper()
	q, err := NewQuantile(p)
	require.NoError(t, err)
	require.NoError(t, PushAll(q, xs...))
	return q
}

func uniformSamples(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = rng.Float64()
	}
	return xs
}

func TestNewQuantile_InvalidProbability(t *testing.T) {
	t.Parallel()

	for _, p := range []float64{0, 1, -0.5, 1.5, math.NaN(), math.Inf(1)} {
		q, err := NewQuantile(p)
		assert.ErrorIs(t, err, ErrInvalidParameter, "p=%v", p)
		assert.Nil(t, q)
	}
}

func TestQuantile_ZeroValueIsUnconfigured(t *testing.T) {
	t.Parallel()

	var q Quantile
	assert.ErrorIs(t, q.Push(1), ErrInvalidParameter)
	assert.ErrorIs(t, q.Merge(newQuantile(t, 0.5, 1)), ErrInvalidParameter)
}

func TestQuantile_FewSamples(t *testing.T) {
	t.Parallel()

	q := newQuantile(t, 0.5)
	assert.True(t, math.IsNaN(q.Quantile()))
	assert.Equal(t, math.Inf(1), q.Min())
	assert.Equal(t, math.Inf(-1), q.Max())

	require.NoError(t, q.Push(7))
	assert.Equal(t, 7.0, q.Quantile())

	require.NoError(t, PushAll(q, 3, 5))
	assert.Equal(t, 5.0, q.Quantile())
	assert.Equal(t, 3.0, q.Min())
	assert.Equal(t, 7.0, q.Max())

	lower := newQuantile(t, 0.25, 4, 1, 3, 2)
	assert.InDelta(t, 1.75, lower.Quantile(), 1e-12)
}

func TestQuantile_FiveSamplesInitializeMarkers(t *testing.T) {
	t.Parallel()

	q := newQuantile(t, 0.5, 5, 1, 4, 2, 3)
	assert.Equal(t, [5]float64{1, 2, 3, 4, 5}, q.q)
	assert.Equal(t, [5]float64{1, 2, 3, 4, 5}, q.pos)
	assert.Equal(t, [5]float64{1, 2, 3, 4, 5}, q.want)
	assert.Equal(t, 3.0, q.Quantile())
}

func TestQuantile_RejectsNonFinite(t *testing.T) {
	t.Parallel()

	q := newQuantile(t, 0.5, 1, 2, 3, 4, 5, 6)
	before := *q
	assert.ErrorIs(t, q.Push(math.NaN()), ErrNonFiniteSample)
	assert.ErrorIs(t, q.Push(math.Inf(1)), ErrNonFiniteSample)
	assert.Equal(t, before, *q)
}

func TestQuantile_UniformMedian(t *testing.T) {
	t.Parallel()

	q := newQuantile(t, 0.5, uniformSamples(2024, 10_000)...)
	assert.Equal(t, uint64(10_000), q.Len())
	assert.InDelta(t, 0.5, q.Quantile(), 0.02)
}

func TestQuantile_MarkersStayOrdered(t *testing.T) {
	t.Parallel()

	q := newQuantile(t, 0.3)
	rng := rand.New(rand.NewSource(8))
	for i := 0; i < 5000; i++ {
		require.NoError(t, q.Push(rng.ExpFloat64()))
		if q.Len() < markers {
			continue
		}
		for j := 1; j < markers; j++ {
			require.LessOrEqual(t, q.q[j-1], q.q[j], "heights after %d samples", q.Len())
			require.Less(t, q.pos[j-1], q.pos[j], "positions after %d samples", q.Len())
		}
		require.Equal(t, float64(q.Len()), q.pos[4])
	}
}

func TestQuantile_MatchesReference(t *testing.T) {
	t.Parallel()

	xs := normalSamples(17, 20_000, 0, 1)
	ref := stats.Sample{Xs: xs}
	targeted := quantile.NewTargeted(0.1, 0.9)
	for _, x := range xs {
		targeted.Insert(x)
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	fraction := func(v float64) float64 {
		return float64(sort.SearchFloat64s(sorted, math.Nextafter(v, math.Inf(1)))) / float64(len(sorted))
	}

	for _, p := range []float64{0.1, 0.9} {
		q := newQuantile(t, p, xs...)
		assert.InDelta(t, ref.Quantile(p), q.Quantile(), 0.05, "p=%v against exact", p)
		// Both streaming estimators must land near rank p of the data.
		assert.InDelta(t, p, fraction(q.Quantile()), 0.02, "p=%v rank of P² estimate", p)
		assert.InDelta(t, p, fraction(targeted.Query(p)), 0.02, "p=%v rank of targeted estimate", p)
	}
}

func TestQuantile_Merge(t *testing.T) {
	t.Parallel()

	xs := uniformSamples(31, 20_000)
	a := newQuantile(t, 0.5, xs[:7000]...)
	b := newQuantile(t, 0.5, xs[7000:]...)

	require.NoError(t, a.Merge(b))
	assert.Equal(t, uint64(len(xs)), a.Len())
	assert.InDelta(t, 0.5, a.Quantile(), 0.03)
	assert.LessOrEqual(t, a.Min(), a.Quantile())
	assert.GreaterOrEqual(t, a.Max(), a.Quantile())

	// The merged estimator keeps working.
	require.NoError(t, PushAll(a, uniformSamples(32, 5000)...))
	assert.InDelta(t, 0.5, a.Quantile(), 0.03)
}

func TestQuantile_MergeDisjointRanges(t *testing.T) {
	t.Parallel()

	// Partition i holds uniforms on [i, i+1); the lower and upper quartiles
	// of the union are 2 and 6.
	for _, tc := range []struct {
		p    float64
		want float64
	}{
		{0.25, 2},
		{0.5, 4},
		{0.75, 6},
	} {
		parts := make([]*Quantile, 8)
		for i := range parts {
			xs := uniformSamples(int64(100+i), 2000)
			for j := range xs {
				xs[j] += float64(i)
			}
			parts[i] = newQuantile(t, tc.p, xs...)
		}

		q, err := Reduce(parts)
		require.NoError(t, err)
		assert.Equal(t, uint64(16_000), q.Len())
		assert.InDelta(t, tc.want, q.Quantile(), 0.1, "p=%v", tc.p)
		assert.Less(t, q.Min(), 0.01)
		assert.Greater(t, q.Max(), 7.99)

		assert.Equal(t, 1.0, q.pos[0])
		assert.Equal(t, 16_000.0, q.pos[4])
		for j := 1; j < markers; j++ {
			assert.Less(t, q.pos[j-1], q.pos[j], "p=%v positions", tc.p)
			assert.LessOrEqual(t, q.q[j-1], q.q[j], "p=%v heights", tc.p)
		}

		// The merged estimator keeps tracking the union.
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 4000; i++ {
			require.NoError(t, q.Push(8*rng.Float64()))
		}
		assert.InDelta(t, tc.want, q.Quantile(), 0.15, "p=%v after more samples", tc.p)
	}
}

func TestQuantile_MergeSmallSidesIsExact(t *testing.T) {
	t.Parallel()

	a := newQuantile(t, 0.5, 9, 1, 4)
	b := newQuantile(t, 0.5, 3, 7)
	require.NoError(t, a.Merge(b))
	assert.Equal(t, *newQuantile(t, 0.5, 1, 3, 4, 7, 9), *a)

	big := newQuantile(t, 0.5, uniformSamples(4, 100)...)
	small := newQuantile(t, 0.5, 0.25, 0.75)
	want := *big
	require.NoError(t, want.replay(small.q, small.n))

	require.NoError(t, small.Merge(big))
	assert.Equal(t, want, *small)
}

func TestQuantile_MergeIncompatible(t *testing.T) {
	t.Parallel()

	a := newQuantile(t, 0.5, 1, 2, 3)
	b := newQuantile(t, 0.9, 1, 2, 3)
	assert.ErrorIs(t, a.Merge(b), ErrIncompatibleMerge)
	assert.Equal(t, uint64(3), a.Len())
}

func TestQuantile_MergeIdentity(t *testing.T) {
	t.Parallel()

	a := newQuantile(t, 0.75, uniformSamples(5, 50)...)
	before := *a
	require.NoError(t, a.Merge(newQuantile(t, 0.75)))
	assert.Equal(t, before, *a)

	empty := newQuantile(t, 0.75)
	require.NoError(t, empty.Merge(a))
	assert.Equal(t, before, *empty)
}

func TestQuantile_Reset(t *testing.T) {
	t.Parallel()

	q := newQuantile(t, 0.25, 1, 2, 3, 4, 5, 6)
	q.Reset()
	assert.Equal(t, uint64(0), q.Len())
	assert.Equal(t, 0.25, q.P())
}

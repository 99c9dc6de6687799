package onlinestats

import (
	"math"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean_Empty(t *testing.T) {
	t.Parallel()

	var m Mean
	assert.True(t, m.IsEmpty())
	assert.Equal(t, uint64(0), m.Len())
	assert.True(t, math.IsNaN(m.Mean()))
}

func TestMean_LongStreamDoesNotDrift(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	sum := new(big.Float).SetPrec(256)
	var m Mean
	const n = 1_000_000
	for i := 0; i < n; i++ {
		x := 1e9 + rng.Float64()
		require.NoError(t, m.Push(x))
		sum.Add(sum, big.NewFloat(x))
	}
	want, _ := new(big.Float).Quo(sum, big.NewFloat(n)).Float64()

	assert.Equal(t, uint64(n), m.Len())
	assert.InEpsilon(t, want, m.Mean(), 1e-12)
}

func TestMean_Merge(t *testing.T) {
	t.Parallel()

	var a, b Mean
	require.NoError(t, PushAll(&a, 1, 2, 3))
	require.NoError(t, PushAll(&b, 4, 5))
	assert.Equal(t, 2.0, a.Mean())
	assert.Equal(t, 4.5, b.Mean())

	require.NoError(t, a.Merge(&b))
	assert.Equal(t, uint64(5), a.Len())
	assert.InDelta(t, 3.0, a.Mean(), 1e-12)
}

func TestMean_MergeIdentity(t *testing.T) {
	t.Parallel()

	var a Mean
	require.NoError(t, PushAll(&a, 0.5, 1.5, 7.25))
	before := a

	require.NoError(t, a.Merge(&Mean{}))
	assert.Equal(t, before, a)

	var empty Mean
	require.NoError(t, empty.Merge(&a))
	assert.Equal(t, a, empty)
}

func TestMean_RejectsNonFinite(t *testing.T) {
	t.Parallel()

	var m Mean
	require.NoError(t, m.Push(2))
	for _, x := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.ErrorIs(t, m.Push(x), ErrNonFiniteSample)
	}
	assert.Equal(t, uint64(1), m.Len())
	assert.Equal(t, 2.0, m.Mean())
}

func TestMean_Reset(t *testing.T) {
	t.Parallel()

	var m Mean
	require.NoError(t, m.Push(3))
	m.Reset()
	assert.True(t, m.IsEmpty())
}

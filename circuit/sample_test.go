package circuit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorq/backend"
)

func TestStateVector(t *testing.T) {
	c := bell(t)
	st, err := c.State()
	require.NoError(t, err)
	require.Equal(t, []int{4}, st.Shape())
	inv := complex(1/math.Sqrt2, 0)
	assertCClose(t, inv, st.Data()[0])
	assertCClose(t, 0, st.Data()[1])
	assertCClose(t, 0, st.Data()[2])
	assertCClose(t, inv, st.Data()[3])
}

func TestAmplitudeValidation(t *testing.T) {
	c := bell(t)
	_, err := c.Amplitude("0")
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))

	_, err = c.Amplitude("02")
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestSampleWithStatus(t *testing.T) {
	c := bell(t)
	got, err := c.Sample(4, WithStatus(backend.Status{0.3, 0.7, 0.49, 0.51}))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 3, 0, 3}, got)
}

func TestSampleIncrementalMatchesOnBell(t *testing.T) {
	c := bell(t)

	perfect, err := c.Sample(2, WithStatus(backend.Status{0.3, 0.7}))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 3}, perfect)

	// One draw per qubit: the second draw per shot resolves a deterministic
	// conditional, so only the first decides.
	incr, err := c.Sample(2, WithIncremental(), WithStatus(backend.Status{0.3, 0.9, 0.7, 0.2}))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 3}, incr)
}

func TestSamplePathsAgreeStatistically(t *testing.T) {
	build := func() *Circuit {
		c, err := New(2)
		require.NoError(t, err)
		require.NoError(t, c.RY(0, 1.1))
		require.NoError(t, c.CNOT(0, 1))
		return c
	}
	want := math.Cos(0.55) * math.Cos(0.55) // p(|00>)

	const shots = 2000
	freq := func(samples []uint64) float64 {
		var n int
		for _, s := range samples {
			if s == 0 {
				n++
			}
		}
		return float64(n) / shots
	}

	perfect, err := build().Sample(shots, WithSource(backend.NewSource(7)))
	require.NoError(t, err)
	incr, err := build().Sample(shots, WithIncremental(), WithSource(backend.NewSource(11)))
	require.NoError(t, err)

	assert.InDelta(t, want, freq(perfect), 0.05)
	assert.InDelta(t, want, freq(incr), 0.05)
}

func TestSampleRejectsNonPositiveShots(t *testing.T) {
	c := bell(t)
	_, err := c.Sample(0)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestMeasureMarginal(t *testing.T) {
	c := bell(t)

	bits, p, err := c.Measure([]int{0}, WithStatus(backend.Status{0.3}))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, bits)
	assert.InDelta(t, 0.5, p, 1e-9)

	bits, p, err = c.Measure([]int{0}, WithStatus(backend.Status{0.8}))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, bits)
	assert.InDelta(t, 0.5, p, 1e-9)
}

func TestMeasureJointArgumentOrder(t *testing.T) {
	c, err := New(3)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.CNOT(0, 1))
	require.NoError(t, c.CNOT(1, 2))

	bits, p, err := c.Measure([]int{2, 0}, WithStatus(backend.Status{0.8}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, bits)
	assert.InDelta(t, 0.5, p, 1e-9)
}

func TestMeasureDoesNotCollapse(t *testing.T) {
	c := bell(t)
	_, _, err := c.Measure([]int{0}, WithStatus(backend.Status{0.8}))
	require.NoError(t, err)
	v, err := c.ExpectationPS(PS().Z(0))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-9)
}

func TestPostSelectKeepsBranchMass(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.PostSelect(0, 1))

	probs, err := c.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, probs[0], 1e-9)
	assert.InDelta(t, 0.5, probs[1], 1e-9)

	a, err := c.Amplitude("1")
	require.NoError(t, err)
	assertCClose(t, complex(1/math.Sqrt2, 0), a)
}

func TestPostSelectValidation(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	err = c.PostSelect(0, 2)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestCondMeasureCollapsesAndRenormalizes(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))

	bit, err := c.CondMeasure(0, WithStatus(backend.Status{0.9}))
	require.NoError(t, err)
	assert.Equal(t, 1, bit)
	assert.Equal(t, []int{1}, c.BranchLog())

	a, err := c.Amplitude("1")
	require.NoError(t, err)
	assertCClose(t, 1, a)
}

func TestCondMeasureEntangledPair(t *testing.T) {
	c := bell(t)
	bit, err := c.CondMeasure(0, WithStatus(backend.Status{0.2}))
	require.NoError(t, err)
	assert.Equal(t, 0, bit)

	// The partner qubit collapses with it.
	v, err := c.ExpectationPS(PS().Z(1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)
}

func TestSampleExpectationExactOnStabilizer(t *testing.T) {
	c := bell(t)
	v, err := c.SampleExpectationPS(PS().X(0, 1), 3, WithStatus(backend.Status{0.1, 0.9, 0.4}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)
}

func TestSampleExpectationMatchesAnalytic(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.RX(0, 0.9))

	v, err := c.SampleExpectationPS(PS().Z(0), 4000, WithSource(backend.NewSource(3)))
	require.NoError(t, err)
	assert.InDelta(t, math.Cos(0.9), v, 0.05)
}

func TestSampleExpectationYBasis(t *testing.T) {
	// RX(-pi/2)|0> = |+i>, the +1 eigenstate of Y.
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.RX(0, -math.Pi/2))

	v, err := c.SampleExpectationPS(PS().Y(0), 5, WithStatus(backend.Status{0.1, 0.3, 0.5, 0.7, 0.9}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)
}

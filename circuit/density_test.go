package circuit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorq/backend"
	"tensorq/gates"
)

func bellDM(t *testing.T) *DMCircuit {
	t.Helper()
	d, err := NewDM(2)
	require.NoError(t, err)
	require.NoError(t, d.H(0))
	require.NoError(t, d.CNOT(0, 1))
	return d
}

func TestDMMatchesPureStateEvolution(t *testing.T) {
	d := bellDM(t)

	probs, err := d.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, probs[0], 1e-9)
	assert.InDelta(t, 0.0, probs[1], 1e-9)
	assert.InDelta(t, 0.0, probs[2], 1e-9)
	assert.InDelta(t, 0.5, probs[3], 1e-9)

	zz, err := d.ExpectationPS(PS().Z(0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, zz, 1e-9)

	xx, err := d.ExpectationPS(PS().X(0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, xx, 1e-9)
}

func TestDMDensityMatrixEntries(t *testing.T) {
	d, err := NewDM(1)
	require.NoError(t, err)
	require.NoError(t, d.H(0))

	rho, err := d.DensityMatrix()
	require.NoError(t, err)
	require.Equal(t, []int{2, 2}, rho.Shape())
	for _, idx := range [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		assertCClose(t, 0.5, rho.At(idx[0], idx[1]))
	}
}

func TestDMPurityOfPureState(t *testing.T) {
	d := bellDM(t)
	p, err := d.Purity()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p, 1e-9)
}

func TestApplyChannelDepolarizing(t *testing.T) {
	ch, err := gates.DepolarizingChannel(0.2, 0, 0)
	require.NoError(t, err)

	d, err := NewDM(1)
	require.NoError(t, err)
	require.NoError(t, d.ApplyChannel(ch, 0))

	z, err := d.ExpectationPS(PS().Z(0))
	require.NoError(t, err)
	assert.InDelta(t, 0.6, z, 1e-9)

	// rho = diag(0.8, 0.2), purity 0.64 + 0.04.
	p, err := d.Purity()
	require.NoError(t, err)
	assert.InDelta(t, 0.68, p, 1e-9)
}

func TestApplyChannelAmplitudeDamping(t *testing.T) {
	ch, err := gates.AmplitudeDampingChannel(0.3)
	require.NoError(t, err)

	d, err := NewDM(1)
	require.NoError(t, err)
	require.NoError(t, d.X(0))
	require.NoError(t, d.ApplyChannel(ch, 0))

	probs, err := d.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, probs[0], 1e-9)
	assert.InDelta(t, 0.7, probs[1], 1e-9)
}

func TestApplyChannelValidation(t *testing.T) {
	d, err := NewDM(2)
	require.NoError(t, err)
	ch, err := gates.DepolarizingChannel(0.1, 0, 0)
	require.NoError(t, err)
	err = d.ApplyChannel(ch, 0, 1)
	require.Error(t, err)
	assert.True(t, backend.IsShape(err))
}

func TestFromCircuitCarriesOperations(t *testing.T) {
	c := bell(t)
	require.NoError(t, c.RZ(1, 0.4))

	d, err := FromCircuit(c)
	require.NoError(t, err)

	wantProbs, err := c.Probability()
	require.NoError(t, err)
	gotProbs, err := d.Probability()
	require.NoError(t, err)
	for i := range wantProbs {
		assert.InDelta(t, wantProbs[i], gotProbs[i], 1e-9)
	}

	want, err := c.ExpectationPS(PS().Z(0, 1))
	require.NoError(t, err)
	got, err := d.ExpectationPS(PS().Z(0, 1))
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-9)
}

func TestFromCircuitCarriesProjection(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.PostSelect(0, 1))

	d, err := FromCircuit(c)
	require.NoError(t, err)
	probs, err := d.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, probs[0], 1e-9)
	assert.InDelta(t, 0.5, probs[1], 1e-9)
}

func TestDMPureInputState(t *testing.T) {
	eng, err := backend.Get("native")
	require.NoError(t, err)
	inv := complex(1/math.Sqrt2, 0)
	psi, err := eng.FromSlice(backend.Complex128, []complex128{inv, inv}, 2)
	require.NoError(t, err)

	d, err := NewDM(1, WithInputState(psi))
	require.NoError(t, err)
	rho, err := d.DensityMatrix()
	require.NoError(t, err)
	for _, idx := range [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		assertCClose(t, 0.5, rho.At(idx[0], idx[1]))
	}
}

func TestDMMixedInputState(t *testing.T) {
	eng, err := backend.Get("native")
	require.NoError(t, err)
	mixed, err := eng.FromSlice(backend.Complex128, []complex128{0.5, 0, 0, 0.5}, 4)
	require.NoError(t, err)

	d, err := NewDM(1, WithInputState(mixed))
	require.NoError(t, err)
	p, err := d.Purity()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9)

	probs, err := d.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, probs[0], 1e-9)
	assert.InDelta(t, 0.5, probs[1], 1e-9)
}

func TestDMInputStateWrongSize(t *testing.T) {
	eng, err := backend.Get("native")
	require.NoError(t, err)
	bad, err := eng.FromSlice(backend.Complex128, []complex128{1, 0, 0}, 3)
	require.NoError(t, err)
	_, err = NewDM(1, WithInputState(bad))
	require.Error(t, err)
	assert.True(t, backend.IsShape(err))
}

func TestDMSampleWithStatus(t *testing.T) {
	d := bellDM(t)
	got, err := d.Sample(2, WithStatus(backend.Status{0.3, 0.8}))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 3}, got)
}

func TestDMControlledGateOptions(t *testing.T) {
	d, err := NewDM(2)
	require.NoError(t, err)
	require.NoError(t, d.ApplyGate("x", []int{1}, Controls(0), ControlStates(0)))
	probs, err := d.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, probs[1], 1e-9)
}

func TestSimulatorInterface(t *testing.T) {
	c := bell(t)
	d := bellDM(t)
	for _, sim := range []Simulator{c, d} {
		assert.Equal(t, 2, sim.NumQubits())
		v, err := sim.ExpectationPS(PS().Z(0, 1))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, v, 1e-9)
	}
}

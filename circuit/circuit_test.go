package circuit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorq/backend"
	"tensorq/gates"
)

func bell(t *testing.T) *Circuit {
	t.Helper()
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.CNOT(0, 1))
	return c
}

func assertCClose(t *testing.T, want, got complex128) {
	t.Helper()
	assert.InDelta(t, real(want), real(got), 1e-9)
	assert.InDelta(t, imag(want), imag(got), 1e-9)
}

func TestNewRejectsEmptyRegister(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestNegativeIndicesAddressFromEnd(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.X(-1))
	probs, err := c.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, probs[1], 1e-9)
}

func TestApplyRejectsArityMismatch(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	err = c.Apply(gates.CNOT(), 0)
	require.Error(t, err)
	assert.True(t, backend.IsShape(err))
}

func TestApplyRejectsDuplicateWires(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	err = c.CNOT(0, 0)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestApplyRejectsOutOfRange(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	err = c.X(2)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestBellAmplitudes(t *testing.T) {
	c := bell(t)
	inv := complex(1/math.Sqrt2, 0)

	a00, err := c.Amplitude("00")
	require.NoError(t, err)
	assertCClose(t, inv, a00)

	a11, err := c.Amplitude("11")
	require.NoError(t, err)
	assertCClose(t, inv, a11)

	a01, err := c.Amplitude("01")
	require.NoError(t, err)
	assertCClose(t, 0, a01)
}

func TestApplyGateWithControls(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.X(0))
	require.NoError(t, c.ApplyGate("x", []int{1}, Controls(0)))
	probs, err := c.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, probs[3], 1e-9)
}

func TestApplyGateAntiControl(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.ApplyGate("x", []int{1}, Controls(0), ControlStates(0)))
	probs, err := c.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, probs[1], 1e-9)
}

func TestPrependRunsBeforeExisting(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.Z(0))

	pre, err := New(1)
	require.NoError(t, err)
	require.NoError(t, pre.H(0))
	require.NoError(t, c.Prepend(pre))

	// Z H |0> has amplitude -1/sqrt(2) on |1>; H Z |0> would have +.
	a1, err := c.Amplitude("1")
	require.NoError(t, err)
	assertCClose(t, complex(-1/math.Sqrt2, 0), a1)
}

func TestAppendSizeMismatch(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	other, err := New(3)
	require.NoError(t, err)
	err = c.Append(other)
	require.Error(t, err)
	assert.True(t, backend.IsShape(err))
}

func TestComposeRoutesWires(t *testing.T) {
	other, err := New(2)
	require.NoError(t, err)
	require.NoError(t, other.CNOT(0, 1))

	c, err := New(3)
	require.NoError(t, err)
	require.NoError(t, c.X(2))
	require.NoError(t, c.Compose(other, 2, 0))

	probs, err := c.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, probs[5], 1e-9) // |101>
}

func TestInverseUndoes(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.S(0))
	require.NoError(t, c.RX(0, 0.3))

	inv, err := c.Inverse()
	require.NoError(t, err)

	full, err := New(1)
	require.NoError(t, err)
	require.NoError(t, full.Append(c))
	require.NoError(t, full.Append(inv))

	a0, err := full.Amplitude("0")
	require.NoError(t, err)
	assertCClose(t, 1, a0)
}

func TestInverseRejectsProjection(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.PostSelect(0, 1))
	_, err = c.Inverse()
	require.Error(t, err)
	assert.True(t, backend.IsNotSupported(err))
}

func TestDepthAndGateCounts(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.H(1))
	require.NoError(t, c.CNOT(0, 1))
	require.NoError(t, c.X(0))

	assert.Equal(t, 4, c.Size())
	assert.Equal(t, 3, c.Depth())
	assert.Equal(t, 4, c.GateCount())
	assert.Equal(t, 2, c.GateCount("h"))
	assert.Equal(t, 1, c.GateCount("cx")) // alias of cnot
	assert.Equal(t, map[string]int{"h": 2, "cnot": 1, "x": 1}, c.GateSummary())
}

func TestWithInputState(t *testing.T) {
	eng, err := backend.Get("native")
	require.NoError(t, err)
	inv := complex(1/math.Sqrt2, 0)
	in, err := eng.FromSlice(backend.Complex128, []complex128{inv, 0, 0, inv}, 4)
	require.NoError(t, err)

	c, err := New(2, WithInputState(in))
	require.NoError(t, err)
	v, err := c.ExpectationPS(PS().Z(0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)
}

func TestWithInputStateWrongSize(t *testing.T) {
	eng, err := backend.Get("native")
	require.NoError(t, err)
	in, err := eng.FromSlice(backend.Complex128, []complex128{1, 0}, 2)
	require.NoError(t, err)
	_, err = New(2, WithInputState(in))
	require.Error(t, err)
	assert.True(t, backend.IsShape(err))
}

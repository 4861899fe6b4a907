package circuit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorq/backend"
	"tensorq/gates"
)

func TestBellCorrelators(t *testing.T) {
	tests := []struct {
		name string
		ps   PauliString
		want float64
	}{
		{"zz", PS().Z(0, 1), 1},
		{"xx", PS().X(0, 1), 1},
		{"yy", PS().Y(0, 1), -1},
		{"z0", PS().Z(0), 0},
		{"z1", PS().Z(1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := bell(t)
			got, err := c.ExpectationPS(tt.ps)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRotationExpectation(t *testing.T) {
	for _, theta := range []float64{0, math.Pi / 4, math.Pi / 2, 1.3, math.Pi} {
		c, err := New(1)
		require.NoError(t, err)
		require.NoError(t, c.RX(0, theta))
		got, err := c.ExpectationPS(PS().Z(0))
		require.NoError(t, err)
		assert.InDelta(t, math.Cos(theta), got, 1e-9)
	}
}

func TestEmptyPauliStringIsIdentity(t *testing.T) {
	c := bell(t)
	got, err := c.ExpectationPS(PS())
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestExpectationPSNegativeIndices(t *testing.T) {
	c := bell(t)
	got, err := c.ExpectationPS(PS().Z(-1, -2))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestExpectationLocalOperators(t *testing.T) {
	c := bell(t)
	got, err := c.Expectation(
		LocalOperator{Gate: gates.Z(), Qubits: []int{0}},
		LocalOperator{Gate: gates.Z(), Qubits: []int{1}},
	)
	require.NoError(t, err)
	assertCClose(t, 1, got)
}

func TestExpectationTwoQubitOperator(t *testing.T) {
	c := bell(t)
	swap, err := c.Expectation(LocalOperator{Gate: gates.SWAP(), Qubits: []int{0, 1}})
	require.NoError(t, err)
	assertCClose(t, 1, swap) // Bell state is symmetric under exchange
}

func TestExpectationNoOperators(t *testing.T) {
	c := bell(t)
	_, err := c.Expectation()
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestExpectationArityMismatch(t *testing.T) {
	c := bell(t)
	_, err := c.Expectation(LocalOperator{Gate: gates.CNOT(), Qubits: []int{0}})
	require.Error(t, err)
	assert.True(t, backend.IsShape(err))
}

func TestExpectationNonHermitianOperator(t *testing.T) {
	// <+|S|+> = (1+i)/2, so Expectation must keep the imaginary part.
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))

	v, err := c.Expectation(LocalOperator{Gate: gates.S(), Qubits: []int{0}})
	require.NoError(t, err)
	assertCClose(t, complex(0.5, 0.5), v)
}

func TestExpectationRecomputesAfterApply(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	v, err := c.ExpectationPS(PS().X(0))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)

	require.NoError(t, c.Z(0)) // |+> -> |->
	v, err = c.ExpectationPS(PS().X(0))
	require.NoError(t, err)
	assert.InDelta(t, -1.0, v, 1e-9)
}

func TestExpectationPSOnCustomInput(t *testing.T) {
	eng, err := backend.Get("native")
	require.NoError(t, err)
	in, err := eng.FromSlice(backend.Complex128, []complex128{0, 0, 0, 1}, 4)
	require.NoError(t, err)
	c, err := New(2, WithInputState(in))
	require.NoError(t, err)

	v, err := c.ExpectationPS(PS().Z(0))
	require.NoError(t, err)
	assert.InDelta(t, -1.0, v, 1e-9)
}

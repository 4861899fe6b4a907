package circuit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequentialState applies the circuit's operations one node at a time,
// bypassing chain merging and the contraction planner.
func sequentialState(t *testing.T, c *Circuit) []complex128 {
	t.Helper()
	nodes, err := buildNodes(c.eng, c.dtype, c.ops)
	require.NoError(t, err)
	st := c.input
	for _, nd := range nodes {
		st, err = applyNode(c.eng, st, nd)
		require.NoError(t, err)
	}
	flat, err := c.eng.Reshape(st, 1<<uint(c.n))
	require.NoError(t, err)
	return flat.Data()
}

func TestContractionMatchesSequentialApply(t *testing.T) {
	c, err := New(3)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.T(0))
	require.NoError(t, c.S(0))
	require.NoError(t, c.RX(1, 0.7))
	require.NoError(t, c.CNOT(0, 1))
	require.NoError(t, c.RZ(1, -0.2))
	require.NoError(t, c.CNOT(1, 2))
	require.NoError(t, c.H(2))

	want := sequentialState(t, c)
	got, err := c.State()
	require.NoError(t, err)
	for i, w := range want {
		assertCClose(t, w, got.Data()[i])
	}
}

func TestMergeChainsCollapsesSingleWireRuns(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.T(0))
	require.NoError(t, c.S(0))
	require.NoError(t, c.X(1))
	require.NoError(t, c.CNOT(0, 1))

	nodes, err := buildNodes(c.eng, c.dtype, c.ops)
	require.NoError(t, err)
	merged, err := mergeChains(c.eng, nodes)
	require.NoError(t, err)

	// H, T, S on wire 0 fuse into one node; X and CNOT survive.
	require.Len(t, merged, 3)
	assert.Equal(t, []int{0}, merged[0].wires)
	assert.Equal(t, []int{1}, merged[1].wires)
	assert.Equal(t, []int{0, 1}, merged[2].wires)
}

func TestMergeChainsPropagatesKind(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.PostSelect(0, 1))
	require.NoError(t, c.H(0))

	nodes, err := buildNodes(c.eng, c.dtype, c.ops)
	require.NoError(t, err)
	merged, err := mergeChains(c.eng, nodes)
	require.NoError(t, err)

	// The run fuses into one node that must not pass for a unitary.
	require.Len(t, merged, 1)
	assert.Equal(t, opProject, merged[0].kind)
}

func TestLightConePrunesDisconnectedGates(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.X(0))
	require.NoError(t, c.H(1))

	kept, cone := lightCone(c.ops, []int{0})
	require.NotNil(t, cone)
	require.Len(t, kept, 1)
	assert.Equal(t, "x", kept[0].name)
	assert.True(t, cone[0])
	assert.False(t, cone[1])
}

func TestLightConeGrowsThroughEntanglers(t *testing.T) {
	c, err := New(3)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.CNOT(0, 1))
	require.NoError(t, c.X(2))

	kept, cone := lightCone(c.ops, []int{1})
	require.NotNil(t, cone)
	require.Len(t, kept, 2)
	assert.True(t, cone[0])
	assert.True(t, cone[1])
	assert.False(t, cone[2])
}

func TestLightConeDisabledByProjection(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.PostSelect(0, 1))
	require.NoError(t, c.X(1))

	kept, cone := lightCone(c.ops, []int{1})
	assert.Nil(t, cone)
	assert.Len(t, kept, 3)
}

func TestLightconeStateReducesRegister(t *testing.T) {
	c, err := New(5)
	require.NoError(t, err)
	require.NoError(t, c.X(4))

	st, axes, err := c.lightconeState([]int{4})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Rank())
	require.Len(t, axes, 5)
	assert.Equal(t, 0, axes[4])
	for w := 0; w < 4; w++ {
		assert.Equal(t, -1, axes[w])
	}
}

func TestLightconeExpectationMatchesFullContraction(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.CNOT(0, 1))
	require.NoError(t, c.RX(2, 0.4))
	require.NoError(t, c.X(3))
	require.NoError(t, c.CNOT(2, 3))

	got, err := c.ExpectationPS(PS().Z(3))
	require.NoError(t, err)

	// Brute force from the full state vector.
	probs, err := c.Probability()
	require.NoError(t, err)
	var want float64
	for idx, p := range probs {
		if (idx>>uint(c.n-1-3))&1 == 1 {
			want -= p
		} else {
			want += p
		}
	}
	assert.InDelta(t, want, got, 1e-9)
	assert.InDelta(t, -math.Cos(0.4), got, 1e-9)
}

func TestLightconeFullCoverReusesState(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))

	_, _, err = c.lightconeState([]int{0})
	require.NoError(t, err)
	assert.NotNil(t, c.state)
}

func TestUnitaryCircuitPreservesNorm(t *testing.T) {
	cases := []struct {
		name  string
		build func(t *testing.T) *Circuit
	}{
		{"bell pair", func(t *testing.T) *Circuit { return bell(t) }},
		{"single-qubit chain", func(t *testing.T) *Circuit {
			c, err := New(1)
			require.NoError(t, err)
			require.NoError(t, c.H(0))
			require.NoError(t, c.T(0))
			require.NoError(t, c.RX(0, 1.3))
			require.NoError(t, c.S(0))
			return c
		}},
		{"entangling rotations", func(t *testing.T) *Circuit {
			c, err := New(3)
			require.NoError(t, err)
			require.NoError(t, c.RY(0, 0.7))
			require.NoError(t, c.CNOT(0, 1))
			require.NoError(t, c.RZZ(1, 2, -0.4))
			require.NoError(t, c.Toffoli(0, 1, 2))
			require.NoError(t, c.RX(2, 2.1))
			return c
		}},
		{"controlled gate options", func(t *testing.T) *Circuit {
			c, err := New(4)
			require.NoError(t, err)
			require.NoError(t, c.H(0))
			require.NoError(t, c.ApplyGate("ry", []int{3}, Params(0.9), Controls(0, 1), ControlStates(1, 0)))
			require.NoError(t, c.SWAP(1, 2))
			require.NoError(t, c.CPhase(2, 3, 0.25))
			return c
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.build(t)
			st, err := c.stateTensor()
			require.NoError(t, err)
			assert.InDelta(t, 1.0, c.eng.Norm(st), 1e-6)
		})
	}
}

func TestContractionPlanReplayIsDeterministic(t *testing.T) {
	build := func() *Circuit {
		c, err := New(3)
		require.NoError(t, err)
		require.NoError(t, c.H(0))
		require.NoError(t, c.CNOT(0, 1))
		require.NoError(t, c.RY(2, 0.3))
		require.NoError(t, c.CZ(1, 2))
		return c
	}
	first, err := build().State()
	require.NoError(t, err)
	second, err := build().State()
	require.NoError(t, err)
	assert.Equal(t, first.Data(), second.Data())
}

func TestUnitaryOfBellPreparation(t *testing.T) {
	c := bell(t)
	u, err := c.Unitary()
	require.NoError(t, err)
	require.Equal(t, []int{4, 4}, u.Shape())

	inv := complex(1/math.Sqrt2, 0)
	assertCClose(t, inv, u.At(0, 0))
	assertCClose(t, inv, u.At(3, 0))
	assertCClose(t, 0, u.At(1, 0))
	assertCClose(t, inv, u.At(1, 1))
	assertCClose(t, inv, u.At(2, 1))
	assertCClose(t, inv, u.At(0, 2))
	assertCClose(t, -inv, u.At(3, 2))
}

package circuit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorq/backend"
	"tensorq/gates"
)

func TestIRRoundTripRegistryGates(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.CNOT(0, 1))
	require.NoError(t, c.RX(1, 0.3))

	ir := c.IR()
	require.Len(t, ir, 3)
	assert.Equal(t, "h", ir[0].Gate)
	assert.Empty(t, ir[0].Kind)
	assert.Empty(t, ir[0].Matrix)
	assert.Equal(t, "cnot", ir[1].Gate)
	assert.Equal(t, []int{0, 1}, ir[1].Qubits)
	assert.Equal(t, "rx", ir[2].Gate)
	assert.Equal(t, []float64{0.3}, ir[2].Params)
	assert.Empty(t, ir[2].Matrix)

	rebuilt, err := FromIR(2, ir)
	require.NoError(t, err)
	want, err := c.State()
	require.NoError(t, err)
	got, err := rebuilt.State()
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())
}

func TestIRCarriesMatrixForCustomGate(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.Any([]complex128{0, 1, 1, 0}, 0))

	ir := c.IR()
	require.Len(t, ir, 1)
	assert.Equal(t, "any", ir[0].Gate)
	require.Len(t, ir[0].Matrix, 4)

	rebuilt, err := FromIR(1, ir)
	require.NoError(t, err)
	a, err := rebuilt.Amplitude("1")
	require.NoError(t, err)
	assertCClose(t, 1, a)
}

func TestIRCarriesMatrixForExpGates(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.Exp1(0.4, gates.Z(), 0))

	ir := c.IR()
	require.Len(t, ir, 1)
	assert.NotEmpty(t, ir[0].Matrix)

	rebuilt, err := FromIR(2, ir)
	require.NoError(t, err)
	want, err := c.State()
	require.NoError(t, err)
	got, err := rebuilt.State()
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())
}

func TestIRControlsRoundTrip(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.X(0))
	require.NoError(t, c.ApplyGate("x", []int{1}, Controls(0)))

	ir := c.IR()
	require.Len(t, ir, 2)
	assert.Equal(t, []int{0}, ir[1].Controls)
	assert.Equal(t, []int{1}, ir[1].CtrlStates)
	assert.Empty(t, ir[1].Matrix)

	rebuilt, err := FromIR(2, ir)
	require.NoError(t, err)
	probs, err := rebuilt.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, probs[3], 1e-9)
}

func TestIRProjectionRoundTrip(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.PostSelect(0, 1))

	ir := c.IR()
	require.Len(t, ir, 2)
	assert.Equal(t, "project", ir[1].Kind)
	assert.NotEmpty(t, ir[1].Matrix)

	rebuilt, err := FromIR(1, ir)
	require.NoError(t, err)
	probs, err := rebuilt.Probability()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, probs[1], 1e-9)
}

func TestJSONRoundTrip(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	require.NoError(t, c.CRZ(0, 1, 0.7))

	data, err := c.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"nqubits": 2`)

	rebuilt, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, c.IR(), rebuilt.IR())

	want, err := c.State()
	require.NoError(t, err)
	got, err := rebuilt.State()
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	_, err := FromJSON([]byte(`{"nqubits": `))
	require.Error(t, err)
}

func TestFromIRUnknownGate(t *testing.T) {
	_, err := FromIR(1, []Instruction{{Gate: "warp", Qubits: []int{0}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instruction 0 (warp)")
}

func TestFromIRRejectsChannelInstruction(t *testing.T) {
	_, err := FromIR(1, []Instruction{{Gate: "depolarizing", Qubits: []int{0}, Kind: "channel"}})
	require.Error(t, err)
	assert.True(t, backend.IsNotSupported(err))
}

func TestDMChannelJSONRoundTrip(t *testing.T) {
	ch, err := gates.DepolarizingChannel(0.1, 0.05, 0.05)
	require.NoError(t, err)

	d, err := NewDM(1)
	require.NoError(t, err)
	require.NoError(t, d.H(0))
	require.NoError(t, d.ApplyChannel(ch, 0))

	ir := d.IR()
	require.Len(t, ir, 2)
	assert.Equal(t, "channel", ir[1].Kind)
	assert.Len(t, ir[1].Matrix, 16)

	data, err := d.ToJSON()
	require.NoError(t, err)
	rebuilt, err := FromDMJSON(data)
	require.NoError(t, err)

	want, err := d.Probability()
	require.NoError(t, err)
	got, err := rebuilt.Probability()
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}

	wp, err := d.Purity()
	require.NoError(t, err)
	gp, err := rebuilt.Purity()
	require.NoError(t, err)
	assert.InDelta(t, wp, gp, 1e-12)
}

func TestComplexMatrixJSON(t *testing.T) {
	data, err := json.Marshal(ComplexMatrix{complex(1, 2), complex(0, -1)})
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,2],[0,-1]]`, string(data))

	var m ComplexMatrix
	require.NoError(t, json.Unmarshal(data, &m))
	require.Len(t, m, 2)
	assertCClose(t, complex(1, 2), m[0])
	assertCClose(t, complex(0, -1), m[1])
}

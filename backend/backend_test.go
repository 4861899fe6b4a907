package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// limitedEngine wraps the native engine but withholds Tensordot, standing in
// for an engine that lacks a primitive.
type limitedEngine struct {
	Engine
}

func (l *limitedEngine) Name() string { return "limited" }

func (l *limitedEngine) Supports(op string) bool {
	return op != "Tensordot" && l.Engine.Supports(op)
}

func (l *limitedEngine) Tensordot(a, b *Dense, axesA, axesB []int) (*Dense, error) {
	return nil, NotSupportedf("backend.Tensordot", "engine %q does not provide Tensordot", l.Name())
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, Names(), "native")

	_, err := Get("no-such-engine")
	assert.True(t, IsNotSupported(err))

	native, err := Get("native")
	require.NoError(t, err)
	err = Register(native)
	assert.True(t, IsConstruction(err), "duplicate registration should fail, got %v", err)
}

func TestLimitedEngineReportsNotSupported(t *testing.T) {
	native, err := Get("native")
	require.NoError(t, err)
	limited := &limitedEngine{Engine: native}

	assert.True(t, limited.Supports("MatMul"))
	assert.False(t, limited.Supports("Tensordot"))

	a, _ := native.FromSlice(Complex128, []complex128{1, 0, 0, 1}, 2, 2)
	_, err = limited.Tensordot(a, a, []int{1}, []int{0})
	assert.True(t, IsNotSupported(err))
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{Constructionf("op", "bad index %d", 7), "ConstructionError"},
		{Shapef("op", "rank %d", 3), "ShapeError"},
		{TypeMismatchf("op", "mixed"), "TypeMismatch"},
		{NotSupportedf("op", "missing"), "NotSupported"},
	}
	for _, tt := range tests {
		assert.Contains(t, tt.err.Error(), tt.want)
	}

	w := Warnf("circuit.ExpectationPS", 1e-3, "imaginary residue on expectation")
	assert.True(t, IsNumericalWarning(w))
	assert.Contains(t, w.Error(), "NumericalWarning")
}

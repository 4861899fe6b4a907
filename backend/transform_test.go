package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quadratic(params []float64) (float64, error) {
	// f(x, y) = x^2 + 3y
	return params[0]*params[0] + 3*params[1], nil
}

func TestGrad(t *testing.T) {
	g := Grad(quadratic)
	got, err := g([]float64{1.5, 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 3.0, got[0], 1e-6)
	assert.InDelta(t, 3.0, got[1], 1e-6)
}

func TestGradStepOption(t *testing.T) {
	g := Grad(quadratic, WithStep(1e-3))
	got, err := g([]float64{-2, 0})
	require.NoError(t, err)
	assert.InDelta(t, -4.0, got[0], 1e-5)
}

func TestJacobian(t *testing.T) {
	f := func(p []float64) ([]float64, error) {
		return []float64{p[0] * p[1], p[0] + p[1]}, nil
	}
	jac, err := Jacobian(f)([]float64{2, 5})
	require.NoError(t, err)
	require.Len(t, jac, 2)
	assert.InDelta(t, 5.0, jac[0][0], 1e-6)
	assert.InDelta(t, 2.0, jac[0][1], 1e-6)
	assert.InDelta(t, 1.0, jac[1][0], 1e-6)
	assert.InDelta(t, 1.0, jac[1][1], 1e-6)
}

func TestBatch(t *testing.T) {
	batch := [][]float64{{0, 0}, {1, 1}, {2, 0}, {3, -1}}
	got, err := Batch(context.Background(), quadratic, batch, WithParallelism(2))
	require.NoError(t, err)
	want := []float64{0, 4, 4, 6}
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "element %d", i)
	}
}

func TestBatchOfGradMatchesSequential(t *testing.T) {
	// Batch(Grad(f)) must agree with evaluating Grad(f) element by element.
	g := Grad(quadratic)
	batch := [][]float64{{1, 0}, {-1, 2}, {0.5, 0.5}}

	batched, err := BatchVector(context.Background(), g, batch)
	require.NoError(t, err)

	for i, params := range batch {
		seq, err := g(params)
		require.NoError(t, err)
		require.Len(t, batched[i], len(seq))
		for j := range seq {
			assert.InDelta(t, seq[j], batched[i][j], 1e-9)
		}
	}
}

func TestBatchPropagatesError(t *testing.T) {
	bad := func(p []float64) (float64, error) {
		if p[0] > 1 {
			return 0, Shapef("test", "boom")
		}
		return p[0], nil
	}
	_, err := Batch(context.Background(), bad, [][]float64{{0}, {2}, {0}})
	require.Error(t, err)
	assert.True(t, IsShape(err))
}

func TestBatchElementErrorWinsOverCancellation(t *testing.T) {
	// With one slot, the first element's failure cancels the group context
	// before the next acquire; the element error must still surface instead
	// of a bare context.Canceled.
	bad := func(p []float64) (float64, error) {
		if p[0] == 0 {
			return 0, Constructionf("test", "element zero failed")
		}
		return p[0], nil
	}
	_, err := Batch(context.Background(), bad, [][]float64{{0}, {1}, {2}, {3}}, WithParallelism(1))
	require.Error(t, err)
	assert.True(t, IsConstruction(err))
	assert.Contains(t, err.Error(), "element zero failed")
	assert.NotErrorIs(t, err, context.Canceled)
}

func TestBatchVectorElementErrorWinsOverCancellation(t *testing.T) {
	bad := func(p []float64) ([]float64, error) {
		if p[0] == 0 {
			return nil, Constructionf("test", "element zero failed")
		}
		return p, nil
	}
	_, err := BatchVector(context.Background(), bad, [][]float64{{0}, {1}, {2}, {3}}, WithParallelism(1))
	require.Error(t, err)
	assert.True(t, IsConstruction(err))
	assert.Contains(t, err.Error(), "element zero failed")
	assert.NotErrorIs(t, err, context.Canceled)
}

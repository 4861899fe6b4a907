package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorq/backend"
)

func TestFlipConfusion(t *testing.T) {
	c := FlipConfusion(0.1, 0.2)
	assert.InDelta(t, 0.9, c[0][0], 1e-12)
	assert.InDelta(t, 0.1, c[1][0], 1e-12)
	assert.InDelta(t, 0.2, c[0][1], 1e-12)
	assert.InDelta(t, 0.8, c[1][1], 1e-12)
	assert.True(t, c.valid())
}

func TestApplyReadoutErrorDeterministicFlips(t *testing.T) {
	// Certain flips do not depend on the draws.
	confs := []Confusion{FlipConfusion(1, 1), FlipConfusion(0, 0)}
	out, err := ApplyReadoutError([]uint64{0, 3}, 2, confs, backend.NewSource(1))
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 1}, out)
}

func TestApplyReadoutErrorIdentity(t *testing.T) {
	confs := []Confusion{FlipConfusion(0, 0)}
	in := []uint64{0, 1, 1, 0}
	out, err := ApplyReadoutError(in, 1, confs, backend.NewSource(2))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestApplyReadoutErrorStatisticalRate(t *testing.T) {
	confs := []Confusion{FlipConfusion(0.25, 0)}
	in := make([]uint64, 4000) // all true 0
	out, err := ApplyReadoutError(in, 1, confs, backend.NewSource(3))
	require.NoError(t, err)
	var ones int
	for _, s := range out {
		if s == 1 {
			ones++
		}
	}
	assert.InDelta(t, 0.25, float64(ones)/4000, 0.03)
}

func TestApplyReadoutErrorValidation(t *testing.T) {
	_, err := ApplyReadoutError([]uint64{0}, 2, []Confusion{FlipConfusion(0, 0)}, nil)
	require.Error(t, err)
	assert.True(t, backend.IsShape(err))

	bad := Confusion{{0.5, 0.5}, {0.4, 0.5}}
	_, err = ApplyReadoutError([]uint64{0}, 1, []Confusion{bad}, nil)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestReweightDistributionSingleQubit(t *testing.T) {
	confs := []Confusion{FlipConfusion(0.1, 0.2)}

	noisy, err := ReweightDistribution([]float64{1, 0}, confs)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, noisy[0], 1e-12)
	assert.InDelta(t, 0.1, noisy[1], 1e-12)

	noisy, err = ReweightDistribution([]float64{0, 1}, confs)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, noisy[0], 1e-12)
	assert.InDelta(t, 0.8, noisy[1], 1e-12)
}

func TestReweightDistributionProduct(t *testing.T) {
	confs := []Confusion{FlipConfusion(0.1, 0.2), FlipConfusion(0.3, 0.1)}
	noisy, err := ReweightDistribution([]float64{1, 0, 0, 0}, confs)
	require.NoError(t, err)
	want := []float64{0.63, 0.27, 0.07, 0.03}
	for i := range want {
		assert.InDelta(t, want[i], noisy[i], 1e-12)
	}
}

func TestReweightDistributionSizeMismatch(t *testing.T) {
	_, err := ReweightDistribution([]float64{1, 0}, []Confusion{FlipConfusion(0, 0), FlipConfusion(0, 0)})
	require.Error(t, err)
	assert.True(t, backend.IsShape(err))
}

// noisyBellCounts reweights the ideal Bell distribution through two flip
// matrices and scales it to exact integer counts.
func noisyBellCounts(t *testing.T, confs []Confusion, shots int) Counts {
	t.Helper()
	noisy, err := ReweightDistribution([]float64{0.5, 0, 0, 0.5}, confs)
	require.NoError(t, err)
	vec := make([]int, len(noisy))
	total := 0
	for i, p := range noisy {
		vec[i] = int(p*float64(shots) + 0.5)
		total += vec[i]
	}
	require.Equal(t, shots, total)
	c, err := FromVector(vec, 2)
	require.NoError(t, err)
	return c
}

func TestMitigateInverseRecoversIdeal(t *testing.T) {
	confs := []Confusion{FlipConfusion(0.1, 0.2), FlipConfusion(0.1, 0.2)}
	m, err := NewMitigator(confs)
	require.NoError(t, err)

	counts := noisyBellCounts(t, confs, 4000)
	got, err := m.Mitigate(counts, MethodInverse)
	require.NoError(t, err)

	assert.InDelta(t, 2000, got["00"], 1e-6)
	assert.InDelta(t, 2000, got["11"], 1e-6)
	assert.InDelta(t, 0, got["01"], 1e-6)
	assert.InDelta(t, 0, got["10"], 1e-6)
}

func TestMitigateSquareStaysNonnegative(t *testing.T) {
	confs := []Confusion{FlipConfusion(0.1, 0.2), FlipConfusion(0.1, 0.2)}
	m, err := NewMitigator(confs)
	require.NoError(t, err)

	counts := noisyBellCounts(t, confs, 4000)
	got, err := m.Mitigate(counts, MethodSquare)
	require.NoError(t, err)

	assert.InDelta(t, 2000, got["00"], 10)
	assert.InDelta(t, 2000, got["11"], 10)
	var total float64
	for k, v := range got {
		assert.GreaterOrEqual(t, v, -1e-9, "negative weight for %s", k)
		total += v
	}
	assert.InDelta(t, 4000, total, 1e-6)
}

func TestMitigateSingularConfusion(t *testing.T) {
	m, err := NewMitigator([]Confusion{FlipConfusion(0.5, 0.5)})
	require.NoError(t, err)
	_, err = m.Mitigate(Counts{"0": 10, "1": 10}, MethodInverse)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestMitigateValidation(t *testing.T) {
	_, err := NewMitigator(nil)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))

	m, err := NewMitigator([]Confusion{FlipConfusion(0.1, 0.1)})
	require.NoError(t, err)
	_, err = m.Mitigate(Counts{}, MethodInverse)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))

	_, err = m.Mitigate(Counts{"0": 1}, Method(9))
	require.Error(t, err)
	assert.True(t, backend.IsNotSupported(err))
}

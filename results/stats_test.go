package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorq/backend"
)

func TestMarginal(t *testing.T) {
	c := Counts{"00": 40, "11": 40, "01": 20}

	m, err := Marginal(c, []int{0})
	require.NoError(t, err)
	assert.Equal(t, Counts{"0": 60, "1": 40}, m)

	m, err = Marginal(c, []int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, Counts{"00": 40, "11": 40, "10": 20}, m)
}

func TestMarginalValidation(t *testing.T) {
	_, err := Marginal(Counts{"00": 1}, nil)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))

	_, err = Marginal(Counts{"00": 1}, []int{2})
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestCorrelation(t *testing.T) {
	even := Counts{"00": 50, "11": 50}
	zz, err := Correlation(even, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, zz, 1e-12)

	z0, err := Correlation(even, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, z0, 1e-12)

	odd := Counts{"01": 30, "10": 70}
	zz, err = Correlation(odd, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, zz, 1e-12)
}

func TestCorrelationEmptyCounts(t *testing.T) {
	_, err := Correlation(Counts{}, 0)
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestZExpectations(t *testing.T) {
	c := Counts{"00": 3, "01": 1}
	zs, err := ZExpectations(c)
	require.NoError(t, err)
	require.Len(t, zs, 2)
	assert.InDelta(t, 1.0, zs[0], 1e-12)
	assert.InDelta(t, 0.5, zs[1], 1e-12)
}

func TestZExpectationsMixedWidths(t *testing.T) {
	_, err := ZExpectations(Counts{"00": 1, "000": 1})
	require.Error(t, err)
	assert.True(t, backend.IsShape(err))
}

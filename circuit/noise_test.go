package circuit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tensorq/backend"
	"tensorq/gates"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func depolarizing(t *testing.T, px, py, pz float64) gates.Channel {
	t.Helper()
	ch, err := gates.DepolarizingChannel(px, py, pz)
	require.NoError(t, err)
	return ch
}

func TestUnitaryKrausBranchSelection(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	// Branch masses 0.7, 0.1, 0.1, 0.1; 0.75 lands on the X branch.
	idx, err := c.UnitaryKraus(depolarizing(t, 0.1, 0.1, 0.1), []int{0}, WithStatus(backend.Status{0.75}))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, []int{1}, c.BranchLog())

	// The renormalized branch operator is exactly X.
	a, err := c.Amplitude("1")
	require.NoError(t, err)
	assertCClose(t, 1, a)
}

func TestUnitaryKrausChannelValidation(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	_, err = c.UnitaryKraus(depolarizing(t, 0.1, 0, 0), []int{0, 1})
	require.Error(t, err)
	assert.True(t, backend.IsShape(err))

	_, err = c.UnitaryKraus(gates.Channel{Name: "empty"}, []int{0})
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

func TestPinnedBranchesReplay(t *testing.T) {
	c, err := New(1, WithPinnedBranches([]int{2}))
	require.NoError(t, err)

	idx, err := c.UnitaryKraus(depolarizing(t, 0.1, 0.1, 0.1), []int{0}, WithStatus(backend.Status{0.0}))
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, []int{2}, c.BranchLog())

	// Y|0> = i|1>.
	a, err := c.Amplitude("1")
	require.NoError(t, err)
	assertCClose(t, complex(0, 1), a)
}

func TestBranchLogReplaysTrajectory(t *testing.T) {
	run := func(opts ...Option) (*Circuit, []int) {
		c, err := New(1, opts...)
		require.NoError(t, err)
		require.NoError(t, c.H(0))
		_, err = c.UnitaryKraus(depolarizing(t, 0.15, 0.15, 0.15), []int{0}, WithSource(backend.NewSource(5)))
		require.NoError(t, err)
		_, err = c.CondMeasure(0, WithSource(backend.NewSource(6)))
		require.NoError(t, err)
		return c, c.BranchLog()
	}

	first, log := run()
	require.Len(t, log, 2)
	replay, replayLog := run(WithPinnedBranches(log))
	assert.Equal(t, log, replayLog)

	a, err := first.State()
	require.NoError(t, err)
	b, err := replay.State()
	require.NoError(t, err)
	assert.Equal(t, a.Data(), b.Data())
}

func TestGeneralKrausAmplitudeDamping(t *testing.T) {
	ch, err := gates.AmplitudeDampingChannel(1)
	require.NoError(t, err)

	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.X(0))

	// With gamma = 1 the decay branch carries all the mass.
	idx, err := c.GeneralKraus(ch, []int{0}, WithStatus(backend.Status{0.42}))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	a, err := c.Amplitude("0")
	require.NoError(t, err)
	assertCClose(t, 1, a)
}

func TestGeneralKrausStateDependentProbabilities(t *testing.T) {
	ch, err := gates.AmplitudeDampingChannel(0.4)
	require.NoError(t, err)

	// On |1> the no-decay branch mass is 1 - gamma = 0.6.
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.X(0))
	idx, err := c.GeneralKraus(ch, []int{0}, WithStatus(backend.Status{0.59}))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	a, err := c.Amplitude("1")
	require.NoError(t, err)
	assertCClose(t, 1, a)

	c, err = New(1)
	require.NoError(t, err)
	require.NoError(t, c.X(0))
	idx, err = c.GeneralKraus(ch, []int{0}, WithStatus(backend.Status{0.61}))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	a, err = c.Amplitude("0")
	require.NoError(t, err)
	assertCClose(t, 1, a)
}

func TestGeneralKrausKeepsStateCached(t *testing.T) {
	ch, err := gates.AmplitudeDampingChannel(0.2)
	require.NoError(t, err)
	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.H(0))
	_, err = c.GeneralKraus(ch, []int{0}, WithStatus(backend.Status{0.1}))
	require.NoError(t, err)
	assert.NotNil(t, c.state)
}

func TestUniformFallbackOnZeroMass(t *testing.T) {
	ch, err := gates.AmplitudeDampingChannel(0.3)
	require.NoError(t, err)

	c, err := New(1)
	require.NoError(t, err)
	require.NoError(t, c.PostSelect(0, 1)) // annihilates |0>

	idx, err := c.GeneralKraus(ch, []int{0}, WithStatus(backend.Status{0.4}))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, []int{0}, c.BranchLog())
}

func TestTrajectoryMeanMatchesDensityMatrix(t *testing.T) {
	const n = 10
	ch := depolarizing(t, 0.2, 0, 0)

	// Stratified uniforms make the branch counts exact: 8 identity
	// trajectories and 2 bit flips.
	vals, err := RunTrajectories(context.Background(), n, 4, func(i int) (float64, error) {
		c, err := New(1)
		if err != nil {
			return 0, err
		}
		status := backend.Status{(float64(i) + 0.5) / n}
		if _, err := c.UnitaryKraus(ch, []int{0}, WithStatus(status)); err != nil {
			return 0, err
		}
		return c.ExpectationPS(PS().Z(0))
	})
	require.NoError(t, err)
	require.Len(t, vals, n)
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= n

	d, err := NewDM(1)
	require.NoError(t, err)
	require.NoError(t, d.ApplyChannel(ch, 0))
	want, err := d.ExpectationPS(PS().Z(0))
	require.NoError(t, err)

	assert.InDelta(t, 0.6, want, 1e-9)
	assert.InDelta(t, want, mean, 1e-9)
}

func TestRunTrajectoriesPropagatesError(t *testing.T) {
	_, err := RunTrajectories(context.Background(), 5, 2, func(i int) (float64, error) {
		if i == 3 {
			return 0, backend.Constructionf("test", "boom")
		}
		return 1, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 3")
}

func TestRunTrajectoriesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunTrajectories(ctx, 4, 1, func(i int) (float64, error) { return 1, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire slot")
}

func TestRunTrajectoriesRejectsNonPositiveCount(t *testing.T) {
	_, err := RunTrajectories(context.Background(), 0, 1, func(i int) (float64, error) { return 0, nil })
	require.Error(t, err)
	assert.True(t, backend.IsConstruction(err))
}

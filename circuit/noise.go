package circuit

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"tensorq/backend"
	"tensorq/gates"
)

// nextBranch draws a branch index from probs, replaying any pinned decision
// first and recording the choice in the branch log.
func (c *Circuit) nextBranch(op string, probs []float64, s *sampler) int {
	if len(c.pinned) > len(c.branches) {
		if idx := c.pinned[len(c.branches)]; idx >= 0 && idx < len(probs) {
			c.branches = append(c.branches, idx)
			return idx
		}
	}
	cum, degenerate := cumulative(probs)
	if degenerate {
		c.logger().Warn("uniform fallback on degenerate branch mass", zap.String("op", op))
	}
	idx := int(drawIndex(cum, s.next()))
	c.branches = append(c.branches, idx)
	return idx
}

func (c *Circuit) checkChannel(op string, ch gates.Channel, qubits []int) error {
	if len(ch.Kraus) == 0 {
		return backend.Constructionf(op, "channel %s has no Kraus operators", ch.Name)
	}
	if ch.Qubits() != len(qubits) {
		return backend.Shapef(op, "channel %s acts on %d qubits, got %d", ch.Name, ch.Qubits(), len(qubits))
	}
	return nil
}

// branchGate renormalizes the chosen Kraus operator by its branch mass so
// the continuation stays a unit-norm pure state.
func branchGate(ch gates.Channel, idx int, p float64) (gates.Gate, error) {
	k := ch.Kraus[idx]
	m := k.Matrix()
	s := complex(1/math.Sqrt(p), 0)
	for i := range m {
		m[i] *= s
	}
	return gates.New(fmt.Sprintf("%s[%d]", ch.Name, idx), k.Qubits(), m)
}

// effectiveProb clips an underflowed branch mass to the uniform weight the
// fallback draw used.
func effectiveProb(p float64, branches int) float64 {
	if p <= massTol {
		return 1 / float64(branches)
	}
	return p
}

// UnitaryKraus applies one Kraus operator of the channel, drawn from the
// state-independent distribution tr(K_i'K_i)/2^k. The distribution is exact
// when every operator is a scaled unitary, which is what makes this path
// cheap: no per-branch contraction is needed. The chosen operator is
// applied renormalized and its branch index returned.
func (c *Circuit) UnitaryKraus(ch gates.Channel, qubits []int, opts ...SampleOption) (int, error) {
	const op = "circuit.UnitaryKraus"
	if err := c.checkChannel(op, ch, qubits); err != nil {
		return 0, err
	}
	qs, err := normalizeQubits(op, qubits, c.n)
	if err != nil {
		return 0, err
	}
	dim := 1 << uint(ch.Qubits())
	probs := make([]float64, len(ch.Kraus))
	for i, k := range ch.Kraus {
		var mass float64
		for _, v := range k.Matrix() {
			mass += real(v)*real(v) + imag(v)*imag(v)
		}
		probs[i] = mass / float64(dim)
	}
	s, _ := newSampler(opts)
	idx := c.nextBranch(op, probs, s)
	g, err := branchGate(ch, idx, effectiveProb(probs[idx], len(probs)))
	if err != nil {
		return 0, err
	}
	oper := operation{name: g.Name(), qubits: qs, kind: opBranch, g: g}
	if c.state != nil {
		tns, err := g.Tensor(c.eng, c.dtype)
		if err != nil {
			return 0, err
		}
		next, err := applyNode(c.eng, c.state, node{name: g.Name(), wires: qs, kind: opBranch, tns: tns})
		if err != nil {
			return 0, err
		}
		return idx, c.applyOpWithState(oper, next)
	}
	if err := c.applyOp(oper); err != nil {
		return 0, err
	}
	return idx, nil
}

// GeneralKraus applies one Kraus operator drawn from the state-dependent
// distribution ||K_i psi||^2, exact for arbitrary channels. It contracts
// the current state once, evaluates every branch against it, and installs
// the chosen branch so the contraction cache stays warm.
func (c *Circuit) GeneralKraus(ch gates.Channel, qubits []int, opts ...SampleOption) (int, error) {
	const op = "circuit.GeneralKraus"
	if err := c.checkChannel(op, ch, qubits); err != nil {
		return 0, err
	}
	qs, err := normalizeQubits(op, qubits, c.n)
	if err != nil {
		return 0, err
	}
	st, err := c.stateTensor()
	if err != nil {
		return 0, err
	}
	branches := make([]*backend.Dense, len(ch.Kraus))
	probs := make([]float64, len(ch.Kraus))
	for i, k := range ch.Kraus {
		tns, err := k.Tensor(c.eng, c.dtype)
		if err != nil {
			return 0, err
		}
		cand, err := applyNode(c.eng, st, node{name: k.Name(), wires: qs, kind: opBranch, tns: tns})
		if err != nil {
			return 0, err
		}
		branches[i] = cand
		nrm := c.eng.Norm(cand)
		probs[i] = nrm * nrm
	}
	s, _ := newSampler(opts)
	idx := c.nextBranch(op, probs, s)
	p := effectiveProb(probs[idx], len(probs))
	g, err := branchGate(ch, idx, p)
	if err != nil {
		return 0, err
	}
	next := c.eng.Scale(branches[idx], complex(1/math.Sqrt(p), 0))
	if err := c.applyOpWithState(operation{name: g.Name(), qubits: qs, kind: opBranch, g: g}, next); err != nil {
		return 0, err
	}
	return idx, nil
}

// applyOpWithState records op and installs the already-contracted state it
// produces.
func (c *Circuit) applyOpWithState(op operation, st *backend.Dense) error {
	if err := c.applyOp(op); err != nil {
		return err
	}
	c.state = st
	return nil
}

// BranchLog returns the branch indices drawn so far, in draw order. Feeding
// the log back through WithPinnedBranches replays the same trajectory on a
// rebuilt circuit.
func (c *Circuit) BranchLog() []int {
	out := make([]int, len(c.branches))
	copy(out, c.branches)
	return out
}

// RunTrajectories evaluates n independent trajectories with bounded
// parallelism and returns their values in index order. Each call to run
// must build its own circuit and randomness source; evaluations share no
// state.
func RunTrajectories(ctx context.Context, n, parallelism int, run func(i int) (float64, error)) ([]float64, error) {
	const op = "circuit.RunTrajectories"
	if n <= 0 {
		return nil, backend.Constructionf(op, "non-positive trajectory count %d", n)
	}
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	out := make([]float64, n)
	sem := semaphore.NewWeighted(int64(parallelism))
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			// A failed acquire usually means a trajectory already failed
			// and cancelled the group context; its error wins.
			if gerr := g.Wait(); gerr != nil {
				return nil, gerr
			}
			return nil, errors.Wrap(err, "trajectories: acquire slot")
		}
		g.Go(func() error {
			defer sem.Release(1)
			v, err := run(i)
			if err != nil {
				return errors.Wrapf(err, "trajectories: index %d", i)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

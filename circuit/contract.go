package circuit

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"tensorq/backend"
	"tensorq/config"
)

// planStep is one contraction decision: merge the adjacent nodes at and
// at+1, or apply the first pending node to the state.
type planStep struct {
	merge bool
	at    int
}

var (
	planOnce   sync.Once
	planShared *lru.Cache[string, []planStep]
)

// plans returns the process-wide contraction-plan cache, sized from the
// settings at first use. A nil cache means plan caching is disabled.
func plans() *lru.Cache[string, []planStep] {
	planOnce.Do(func() {
		if size := config.Current().PlanCacheSize; size > 0 {
			planShared, _ = lru.New[string, []planStep](size)
		}
	})
	return planShared
}

// signature keys a contraction plan by register rank and node wire lists.
func signature(rank int, nodes []node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", rank)
	for _, nd := range nodes {
		b.WriteByte('|')
		for i, w := range nd.wires {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%d", w)
		}
	}
	return b.String()
}

// complementWires returns 0..rank-1 without the given wires, ascending.
func complementWires(rank int, wires []int) []int {
	drop := make(map[int]bool, len(wires))
	for _, w := range wires {
		drop[w] = true
	}
	out := make([]int, 0, rank-len(wires))
	for i := 0; i < rank; i++ {
		if !drop[i] {
			out = append(out, i)
		}
	}
	return out
}

// applyNode contracts a node tensor into the state along the node's wires
// and restores wire order.
func applyNode(eng backend.Engine, state *backend.Dense, nd node) (*backend.Dense, error) {
	k := len(nd.wires)
	bra := make([]int, k)
	for i := range bra {
		bra[i] = k + i
	}
	out, err := eng.Tensordot(nd.tns, state, bra, nd.wires)
	if err != nil {
		return nil, err
	}
	r := state.Rank()
	perm := make([]int, r)
	for i, w := range nd.wires {
		perm[w] = i
	}
	for i, w := range complementWires(r, nd.wires) {
		perm[w] = k + i
	}
	return eng.Transpose(out, perm...)
}

// worseKind keeps the non-unitary tag when merging operator tensors.
func worseKind(a, b opKind) opKind {
	if a != opUnitary {
		return a
	}
	return b
}

// mergeChains collapses runs of consecutive single-wire nodes into one
// aggregated operator per run.
func mergeChains(eng backend.Engine, nodes []node) ([]node, error) {
	out := make([]node, 0, len(nodes))
	last := make(map[int]int, 8) // wire -> index in out
	for _, nd := range nodes {
		if len(nd.wires) == 1 {
			w := nd.wires[0]
			if j, ok := last[w]; ok && len(out[j].wires) == 1 {
				lm, err := eng.Reshape(nd.tns, 2, 2)
				if err != nil {
					return nil, err
				}
				em, err := eng.Reshape(out[j].tns, 2, 2)
				if err != nil {
					return nil, err
				}
				prod, err := eng.MatMul(lm, em)
				if err != nil {
					return nil, err
				}
				out[j] = node{
					name:  nd.name + "*" + out[j].name,
					wires: out[j].wires,
					kind:  worseKind(nd.kind, out[j].kind),
					tns:   prod,
				}
				continue
			}
		}
		for _, w := range nd.wires {
			last[w] = len(out)
		}
		out = append(out, nd)
	}
	return out, nil
}

// sortedUnion merges two wire lists ascending without duplicates.
func sortedUnion(a, b []int) []int {
	set := make(map[int]bool, len(a)+len(b))
	for _, w := range a {
		set[w] = true
	}
	for _, w := range b {
		set[w] = true
	}
	out := make([]int, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}

// sharesWire reports whether two nodes touch a common wire.
func sharesWire(a, b node) bool {
	for _, wa := range a.wires {
		for _, wb := range b.wires {
			if wa == wb {
				return true
			}
		}
	}
	return false
}

// embedMatrix expands a node's operator to a matrix over the union wires,
// identity on the wires the node does not touch.
func embedMatrix(eng backend.Engine, dt backend.DType, nd node, union []int) (*backend.Dense, error) {
	k := len(nd.wires)
	u := len(union)
	gm, err := eng.Reshape(nd.tns, 1<<uint(k), 1<<uint(k))
	if err != nil {
		return nil, err
	}
	legs := nd.wires
	if u > k {
		extras := make([]int, 0, u-k)
		on := make(map[int]bool, k)
		for _, w := range nd.wires {
			on[w] = true
		}
		for _, w := range union {
			if !on[w] {
				extras = append(extras, w)
			}
		}
		eye, err := eng.Eye(dt, 1<<uint(u-k))
		if err != nil {
			return nil, err
		}
		gm, err = eng.Kron(gm, eye)
		if err != nil {
			return nil, err
		}
		legs = append(append([]int{}, nd.wires...), extras...)
	}
	ft, err := eng.Reshape(gm, qubitShape(2*u)...)
	if err != nil {
		return nil, err
	}
	pos := make(map[int]int, u)
	for i, w := range legs {
		pos[w] = i
	}
	perm := make([]int, 2*u)
	for t, w := range union {
		perm[t] = pos[w]
		perm[u+t] = u + pos[w]
	}
	pt, err := eng.Transpose(ft, perm...)
	if err != nil {
		return nil, err
	}
	return eng.Reshape(pt, 1<<uint(u), 1<<uint(u))
}

// mergeUnion contracts two sequence-adjacent nodes into one operator on the
// union of their wires, later applied after earlier.
func mergeUnion(eng backend.Engine, dt backend.DType, earlier, later node) (node, error) {
	union := sortedUnion(earlier.wires, later.wires)
	a, err := embedMatrix(eng, dt, earlier, union)
	if err != nil {
		return node{}, err
	}
	b, err := embedMatrix(eng, dt, later, union)
	if err != nil {
		return node{}, err
	}
	prod, err := eng.MatMul(b, a)
	if err != nil {
		return node{}, err
	}
	tns, err := eng.Reshape(prod, qubitShape(2*len(union))...)
	if err != nil {
		return node{}, err
	}
	return node{
		name:  later.name + "*" + earlier.name,
		wires: union,
		kind:  worseKind(earlier.kind, later.kind),
		tns:   tns,
	}, nil
}

// bestStep picks the pending contraction with the smallest intermediate
// tensor: merging adjacent overlapping nodes when the merged operator stays
// below the state size, applying the next node to the state otherwise.
func bestStep(work []node, stateSize int) planStep {
	best := planStep{}
	bestCost := stateSize
	for i := 0; i+1 < len(work); i++ {
		if !sharesWire(work[i], work[i+1]) {
			continue
		}
		u := len(sortedUnion(work[i].wires, work[i+1].wires))
		if cost := 1 << uint(2*u); cost < bestCost {
			bestCost = cost
			best = planStep{merge: true, at: i}
		}
	}
	return best
}

// validStep reports whether a cached plan step can be replayed against the
// current work list.
func validStep(st planStep, work []node) bool {
	if st.merge {
		return st.at >= 0 && st.at+1 < len(work) && sharesWire(work[st.at], work[st.at+1])
	}
	return len(work) > 0
}

// contractNodes runs the default strategy: single-qubit chain merging, then
// greedy pairwise contraction replayed from the plan cache when the network
// shape has been seen before.
func contractNodes(eng backend.Engine, dt backend.DType, input *backend.Dense, nodes []node, log *zap.Logger) (*backend.Dense, error) {
	merged, err := mergeChains(eng, nodes)
	if err != nil {
		return nil, err
	}

	sig := signature(input.Rank(), merged)
	var plan []planStep
	cachedPlan := false
	if pc := plans(); pc != nil {
		plan, cachedPlan = pc.Get(sig)
	}

	state := input
	work := append([]node(nil), merged...)
	steps := make([]planStep, 0, len(work))
	for len(work) > 0 {
		var st planStep
		if cachedPlan && len(steps) < len(plan) && validStep(plan[len(steps)], work) {
			st = plan[len(steps)]
		} else {
			st = bestStep(work, state.Size())
		}
		if st.merge {
			m, err := mergeUnion(eng, dt, work[st.at], work[st.at+1])
			if err != nil {
				return nil, err
			}
			work[st.at] = m
			work = append(work[:st.at+1], work[st.at+2:]...)
		} else {
			state, err = applyNode(eng, state, work[0])
			if err != nil {
				return nil, err
			}
			work = work[1:]
		}
		steps = append(steps, st)
	}

	if pc := plans(); pc != nil && !cachedPlan {
		pc.Add(sig, steps)
	}
	log.Debug("contracted network",
		zap.Int("nodes", len(nodes)),
		zap.Int("chain_merged", len(nodes)-len(merged)),
		zap.Bool("plan_cached", cachedPlan),
	)
	return state, nil
}

// stateTensor contracts the full circuit into its rank-n state, serving and
// filling the per-circuit cache.
func (c *Circuit) stateTensor() (*backend.Dense, error) {
	if c.state != nil {
		return c.state, nil
	}
	nodes, err := buildNodes(c.eng, c.dtype, c.ops)
	if err != nil {
		return nil, err
	}
	st, err := contractNodes(c.eng, c.dtype, c.input, nodes, c.logger())
	if err != nil {
		return nil, err
	}
	c.state = st
	return st, nil
}

// lightCone returns the operations causally connected to the target qubits
// under reverse reachability, with the set of wires they span. Circuits
// containing non-unitary operations are returned whole (nil wire set):
// dropped projectors or branches would change the state, unlike unitaries,
// which cancel against their adjoints outside the cone.
func lightCone(ops []operation, targets []int) ([]operation, map[int]bool) {
	for _, op := range ops {
		if op.kind != opUnitary {
			return ops, nil
		}
	}
	active := make(map[int]bool, len(targets))
	for _, q := range targets {
		active[q] = true
	}
	keptRev := make([]operation, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		touches := false
		for _, w := range ops[i].wires() {
			if active[w] {
				touches = true
				break
			}
		}
		if !touches {
			continue
		}
		for _, w := range ops[i].wires() {
			active[w] = true
		}
		keptRev = append(keptRev, ops[i])
	}
	kept := make([]operation, len(keptRev))
	for i, op := range keptRev {
		kept[len(keptRev)-1-i] = op
	}
	return kept, active
}

// lightconeState contracts only the light cone of the target qubits. It
// returns the contracted state and, per register wire, the axis holding it
// in that state (-1 for wires outside the cone). With a non-default input
// state the register cannot shrink, so only gate pruning applies.
func (c *Circuit) lightconeState(targets []int) (*backend.Dense, []int, error) {
	axes := make([]int, c.n)
	for i := range axes {
		axes[i] = i
	}
	if c.state != nil {
		return c.state, axes, nil
	}

	kept, active := lightCone(c.ops, targets)
	if active == nil {
		st, err := c.stateTensor()
		return st, axes, err
	}

	if !c.defIn {
		nodes, err := buildNodes(c.eng, c.dtype, kept)
		if err != nil {
			return nil, nil, err
		}
		st, err := contractNodes(c.eng, c.dtype, c.input, nodes, c.logger())
		if err != nil {
			return nil, nil, err
		}
		if len(kept) == len(c.ops) {
			c.state = st
		}
		return st, axes, nil
	}

	// default |0...0> input: wires outside the cone factor out entirely
	wires := make([]int, 0, len(active))
	for w := range active {
		wires = append(wires, w)
	}
	sort.Ints(wires)
	for i := range axes {
		axes[i] = -1
	}
	for i, w := range wires {
		axes[w] = i
	}

	remapped := make([]operation, len(kept))
	for i, op := range kept {
		cp := op.clone()
		for j, q := range cp.qubits {
			cp.qubits[j] = axes[q]
		}
		for j, q := range cp.controls {
			cp.controls[j] = axes[q]
		}
		remapped[i] = cp
	}
	input, err := c.eng.Basis(c.dtype, len(wires), 0)
	if err != nil {
		return nil, nil, err
	}
	nodes, err := buildNodes(c.eng, c.dtype, remapped)
	if err != nil {
		return nil, nil, err
	}
	st, err := contractNodes(c.eng, c.dtype, input, nodes, c.logger())
	if err != nil {
		return nil, nil, err
	}
	c.logger().Debug("light cone contraction",
		zap.Int("kept_ops", len(kept)),
		zap.Int("dropped_ops", len(c.ops)-len(kept)),
		zap.Int("cone_wires", len(wires)),
	)
	if len(wires) == c.n && len(kept) == len(c.ops) {
		c.state = st
	}
	return st, axes, nil
}

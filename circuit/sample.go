package circuit

import (
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"tensorq/backend"
	"tensorq/gates"
)

// massTol is the squared-amplitude mass below which a distribution is
// treated as degenerate and replaced by a uniform one.
const massTol = 1e-24

type sampleOptions struct {
	status      backend.Status
	src         *rand.Rand
	incremental bool
}

// SampleOption adjusts a stochastic evaluation call.
type SampleOption func(*sampleOptions)

// WithStatus supplies pre-drawn uniforms, consumed one per stochastic
// decision, making the call deterministic.
func WithStatus(s backend.Status) SampleOption {
	return func(o *sampleOptions) { o.status = s }
}

// WithSource draws uniforms from the given source instead of the shared
// process-wide generator.
func WithSource(r *rand.Rand) SampleOption {
	return func(o *sampleOptions) { o.src = r }
}

// WithIncremental samples qubit by qubit from conditional marginals instead
// of materializing the cumulative distribution of the full register.
func WithIncremental() SampleOption {
	return func(o *sampleOptions) { o.incremental = true }
}

func newSampler(opts []SampleOption) (*sampler, *sampleOptions) {
	o := &sampleOptions{}
	for _, apply := range opts {
		apply(o)
	}
	return &sampler{status: o.status, src: o.src}, o
}

// sampler hands out uniforms from a status array while it lasts, then from
// the configured source, then from the shared generator.
type sampler struct {
	status backend.Status
	pos    int
	src    *rand.Rand
}

func (s *sampler) next() float64 {
	if s.pos < len(s.status) {
		v := s.status[s.pos]
		s.pos++
		return v
	}
	if s.src != nil {
		return s.src.Float64()
	}
	return rand.Float64()
}

// cumulative folds weights into a normalized cumulative distribution. The
// degenerate flag reports that total mass underflowed and a uniform
// distribution was substituted.
func cumulative(probs []float64) ([]float64, bool) {
	cum := make([]float64, len(probs))
	var total float64
	for i, p := range probs {
		total += p
		cum[i] = total
	}
	if total <= massTol {
		for i := range cum {
			cum[i] = float64(i+1) / float64(len(cum))
		}
		return cum, true
	}
	for i := range cum {
		cum[i] /= total
	}
	cum[len(cum)-1] = 1
	return cum, false
}

// drawIndex maps a uniform draw to the first outcome whose cumulative mass
// exceeds it.
func drawIndex(cum []float64, r float64) uint64 {
	i := sort.Search(len(cum), func(i int) bool { return cum[i] > r })
	if i == len(cum) {
		i = len(cum) - 1
	}
	return uint64(i)
}

// State contracts the circuit and returns the state as a length-2^n vector
// in basis order.
func (c *Circuit) State() (*backend.Dense, error) {
	st, err := c.stateTensor()
	if err != nil {
		return nil, err
	}
	return c.eng.Reshape(st, 1<<uint(c.n))
}

// Probability returns the basis-ordered distribution of squared amplitudes.
// A state left unnormalized by post-selection yields unnormalized weights.
func (c *Circuit) Probability() ([]float64, error) {
	st, err := c.stateTensor()
	if err != nil {
		return nil, err
	}
	data := st.Data()
	probs := make([]float64, len(data))
	for i, v := range data {
		probs[i] = real(v)*real(v) + imag(v)*imag(v)
	}
	return probs, nil
}

// parseBits converts a bitstring such as "0110" into its basis index,
// qubit 0 first.
func parseBits(op, bits string, n int) (uint64, error) {
	if len(bits) != n {
		return 0, backend.Constructionf(op, "bitstring %q has %d bits, register has %d", bits, len(bits), n)
	}
	var idx uint64
	for _, ch := range bits {
		switch ch {
		case '0':
			idx <<= 1
		case '1':
			idx = idx<<1 | 1
		default:
			return 0, backend.Constructionf(op, "bitstring %q contains %q", bits, ch)
		}
	}
	return idx, nil
}

// Amplitude returns the state amplitude of the given basis bitstring.
func (c *Circuit) Amplitude(bits string) (complex128, error) {
	idx, err := parseBits("circuit.Amplitude", bits, c.n)
	if err != nil {
		return 0, err
	}
	st, err := c.stateTensor()
	if err != nil {
		return 0, err
	}
	return st.Data()[idx], nil
}

// Unitary contracts the circuit over an identity input and returns the full
// 2^n x 2^n operator matrix. Projective operations make the result
// non-unitary but remain well defined.
func (c *Circuit) Unitary() (*backend.Dense, error) {
	dim := 1 << uint(c.n)
	eye, err := c.eng.Eye(c.dtype, dim)
	if err != nil {
		return nil, err
	}
	in, err := c.eng.Reshape(eye, qubitShape(2*c.n)...)
	if err != nil {
		return nil, err
	}
	nodes, err := buildNodes(c.eng, c.dtype, c.ops)
	if err != nil {
		return nil, err
	}
	out, err := contractNodes(c.eng, c.dtype, in, nodes, c.logger())
	if err != nil {
		return nil, err
	}
	return c.eng.Reshape(out, dim, dim)
}

// Sample draws measurement outcomes in the computational basis, qubit 0 as
// the most significant bit. The default path walks the cumulative
// distribution of the contracted state; WithIncremental samples qubit by
// qubit through conditional slicing. Both paths draw from the same
// distribution.
func (c *Circuit) Sample(shots int, opts ...SampleOption) ([]uint64, error) {
	const op = "circuit.Sample"
	if shots <= 0 {
		return nil, backend.Constructionf(op, "non-positive shot count %d", shots)
	}
	s, o := newSampler(opts)
	if o.incremental {
		return c.sampleIncremental(shots, s)
	}
	probs, err := c.Probability()
	if err != nil {
		return nil, err
	}
	cum, degenerate := cumulative(probs)
	if degenerate {
		c.logger().Warn("uniform fallback on degenerate distribution", zap.String("op", op))
	}
	out := make([]uint64, shots)
	for i := range out {
		out[i] = drawIndex(cum, s.next())
	}
	return out, nil
}

func (c *Circuit) sampleIncremental(shots int, s *sampler) ([]uint64, error) {
	st, err := c.stateTensor()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, shots)
	for sh := range out {
		cur := st
		var idx uint64
		for q := 0; q < c.n; q++ {
			zero, err := c.eng.Slice(cur, 0, 0)
			if err != nil {
				return nil, err
			}
			one, err := c.eng.Slice(cur, 0, 1)
			if err != nil {
				return nil, err
			}
			n0, n1 := c.eng.Norm(zero), c.eng.Norm(one)
			p0 := 0.5
			if mass := n0*n0 + n1*n1; mass > massTol {
				p0 = n0 * n0 / mass
			}
			bit, next, nrm := uint64(1), one, n1
			if s.next() < p0 {
				bit, next, nrm = 0, zero, n0
			}
			idx = idx<<1 | bit
			if q+1 < c.n {
				if nrm > massTol {
					next = c.eng.Scale(next, complex(1/nrm, 0))
				}
				cur = next
			}
		}
		out[sh] = idx
	}
	return out, nil
}

// Measure samples a joint outcome for the given qubits from the current
// state without collapsing it. It returns the bits in argument order and
// the outcome probability.
func (c *Circuit) Measure(qubits []int, opts ...SampleOption) ([]int, float64, error) {
	const op = "circuit.Measure"
	qs, err := normalizeQubits(op, qubits, c.n)
	if err != nil {
		return nil, 0, err
	}
	if len(qs) == 0 {
		return nil, 1, nil
	}
	probs, err := c.Probability()
	if err != nil {
		return nil, 0, err
	}
	k := len(qs)
	marg := make([]float64, 1<<uint(k))
	var total float64
	for i, p := range probs {
		var key int
		for j, q := range qs {
			bit := (i >> uint(c.n-1-q)) & 1
			key |= bit << uint(k-1-j)
		}
		marg[key] += p
		total += p
	}
	cum, degenerate := cumulative(marg)
	if degenerate {
		c.logger().Warn("uniform fallback on degenerate distribution", zap.String("op", op))
	}
	s, _ := newSampler(opts)
	key := int(drawIndex(cum, s.next()))
	bits := make([]int, k)
	for j := range bits {
		bits[j] = (key >> uint(k-1-j)) & 1
	}
	prob := marg[key]
	if total > massTol {
		prob /= total
	} else {
		prob = 1 / float64(len(marg))
	}
	return bits, prob, nil
}

// PostSelect projects qubit q onto the given basis state without
// renormalizing, so the continuation carries the branch mass.
func (c *Circuit) PostSelect(q, keep int) error {
	const op = "circuit.PostSelect"
	if keep != 0 && keep != 1 {
		return backend.Constructionf(op, "kept state must be 0 or 1, got %d", keep)
	}
	m := make([]complex128, 4)
	m[keep*3] = 1
	g, err := gates.New("postselect", 1, m)
	if err != nil {
		return err
	}
	return c.applyOp(operation{name: "postselect", qubits: []int{q}, kind: opProject, g: g})
}

// CondMeasure measures qubit q, collapses the state onto the observed
// branch renormalized, and returns the observed bit. The branch decision is
// recorded and honors pinning.
func (c *Circuit) CondMeasure(q int, opts ...SampleOption) (int, error) {
	const op = "circuit.CondMeasure"
	qn, err := normalizeQubit(op, q, c.n)
	if err != nil {
		return 0, err
	}
	st, err := c.stateTensor()
	if err != nil {
		return 0, err
	}
	zero, err := c.eng.Slice(st, qn, 0)
	if err != nil {
		return 0, err
	}
	n0, nt := c.eng.Norm(zero), c.eng.Norm(st)
	probs := []float64{0.5, 0.5}
	if mass := nt * nt; mass > massTol {
		probs[0] = n0 * n0 / mass
		probs[1] = 1 - probs[0]
	}
	s, _ := newSampler(opts)
	bit := c.nextBranch(op, probs, s)

	scale := complex(1, 0)
	if p := probs[bit]; p > massTol {
		scale = complex(1/math.Sqrt(p), 0)
	}
	m := make([]complex128, 4)
	m[bit*3] = scale
	g, err := gates.New("collapse", 1, m)
	if err != nil {
		return 0, err
	}
	if err := c.applyOp(operation{name: "collapse", qubits: []int{qn}, kind: opBranch, g: g}); err != nil {
		return 0, err
	}
	return bit, nil
}

// SampleExpectationPS estimates a Pauli-string expectation from shots
// basis measurements, rotating each measured qubit into the computational
// basis first (H for X, S-dagger then H for Y).
func (c *Circuit) SampleExpectationPS(ps PauliString, shots int, opts ...SampleOption) (float64, error) {
	const op = "circuit.SampleExpectationPS"
	if shots <= 0 {
		return 0, backend.Constructionf(op, "non-positive shot count %d", shots)
	}
	norm, qubits, err := ps.normalized(c.n)
	if err != nil {
		return 0, err
	}
	if len(qubits) == 0 {
		return 1, nil
	}
	st, err := c.stateTensor()
	if err != nil {
		return 0, err
	}
	rot := st
	for _, q := range qubits {
		var basis []gates.Gate
		switch norm[q] {
		case PauliX:
			basis = []gates.Gate{gates.H()}
		case PauliY:
			basis = []gates.Gate{gates.SD(), gates.H()}
		}
		for _, g := range basis {
			tns, err := g.Tensor(c.eng, c.dtype)
			if err != nil {
				return 0, err
			}
			rot, err = applyNode(c.eng, rot, node{name: g.Name(), wires: []int{q}, kind: opUnitary, tns: tns})
			if err != nil {
				return 0, err
			}
		}
	}
	data := rot.Data()
	probs := make([]float64, len(data))
	for i, v := range data {
		probs[i] = real(v)*real(v) + imag(v)*imag(v)
	}
	cum, degenerate := cumulative(probs)
	if degenerate {
		c.logger().Warn("uniform fallback on degenerate distribution", zap.String("op", op))
	}
	s, _ := newSampler(opts)
	var sum float64
	for i := 0; i < shots; i++ {
		idx := drawIndex(cum, s.next())
		par := 0
		for _, q := range qubits {
			par += int((idx >> uint(c.n-1-q)) & 1)
		}
		if par%2 == 1 {
			sum--
		} else {
			sum++
		}
	}
	return sum / float64(shots), nil
}
